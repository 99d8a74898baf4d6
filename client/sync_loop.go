package client

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

const (
	DefaultStateInterval    = 5 * time.Second
	DefaultApprovalInterval = time.Second
	DefaultIncomingInterval = 2 * time.Second
)

// ApprovalView is the device's own request as shown to the guest.
type ApprovalView struct {
	RequestID string
	TimeLeft  int
	Status    models.ApprovalStatus
}

// Snapshot is everything the guest screen renders.
type Snapshot struct {
	Order     *models.TableOrder
	SessionID string
	Closed    *TableClosedError
	Approval  *ApprovalView
	Incoming  []services.PendingRequest
	Err       error
}

// SyncLoop keeps one device in step with its table by polling. State is
// re-read every StateInterval; the device's own approval request every
// ApprovalInterval; requests from other guests every IncomingInterval while
// this device is a participant.
type SyncLoop struct {
	API          *API
	Table        string
	RestaurantID uint
	Tokens       *TokenStore
	Fingerprint  string

	StateInterval    time.Duration
	ApprovalInterval time.Duration
	IncomingInterval time.Duration

	// OnUpdate receives a copy of the snapshot after every change.
	OnUpdate func(Snapshot)

	mu       sync.Mutex
	snap     Snapshot
	deadline time.Time
	waiting  []services.ItemInput
	now      func() time.Time
}

func NewSyncLoop(api *API, table string, restaurantID uint, tokens *TokenStore) *SyncLoop {
	return &SyncLoop{
		API:              api,
		Table:            table,
		RestaurantID:     restaurantID,
		Tokens:           tokens,
		StateInterval:    DefaultStateInterval,
		ApprovalInterval: DefaultApprovalInterval,
		IncomingInterval: DefaultIncomingInterval,
		now:              time.Now,
	}
}

// Run polls until ctx is done or the table is closed.
func (l *SyncLoop) Run(ctx context.Context) error {
	if err := l.Refresh(ctx); err != nil {
		var closed *TableClosedError
		if errors.As(err, &closed) {
			return err
		}
	}

	stateT := time.NewTicker(l.StateInterval)
	defer stateT.Stop()
	approvalT := time.NewTicker(l.ApprovalInterval)
	defer approvalT.Stop()
	incomingT := time.NewTicker(l.IncomingInterval)
	defer incomingT.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stateT.C:
			err := l.Refresh(ctx)
			var closed *TableClosedError
			if errors.As(err, &closed) {
				return err
			}
		case <-approvalT.C:
			l.PollApproval(ctx)
		case <-incomingT.C:
			l.PollIncoming(ctx)
		}
	}
}

// Snapshot returns a copy of the current state.
func (l *SyncLoop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copySnap()
}

// Refresh re-reads the table and picks up the freshly rotated session.
func (l *SyncLoop) Refresh(ctx context.Context) error {
	token, err := l.Tokens.Token()
	if err != nil {
		return err
	}
	l.mu.Lock()
	session := l.snap.SessionID
	l.mu.Unlock()

	state, err := l.API.State(ctx, l.Table, session, token)
	l.update(func(s *Snapshot) {
		s.Err = err
		var closed *TableClosedError
		if errors.As(err, &closed) {
			s.Closed = closed
			s.Order = nil
			s.SessionID = ""
			s.Approval = nil
			s.Incoming = nil
			return
		}
		if err == nil {
			s.Closed = nil
			s.Order = state.Order
			s.SessionID = state.SessionID
		}
	})
	if err != nil {
		utils.InfoLogger.WithField("table", l.Table).Debugf("refresh failed: %v", err)
	}
	return err
}

// SetItems replaces this device's cart. A stale session is refreshed and the
// write retried once; an approval requirement starts the countdown and the
// write is replayed once the request is approved.
func (l *SyncLoop) SetItems(ctx context.Context, items []services.ItemInput) (*models.TableOrder, error) {
	token, err := l.Tokens.Token()
	if err != nil {
		return nil, err
	}

	state, err := l.submit(ctx, token, items)
	if errors.Is(err, ErrSessionMismatch) {
		if rerr := l.Refresh(ctx); rerr != nil {
			return nil, rerr
		}
		state, err = l.submit(ctx, token, items)
	}

	var approval *ApprovalError
	if errors.As(err, &approval) {
		l.update(func(s *Snapshot) {
			s.Approval = &ApprovalView{RequestID: approval.RequestID, TimeLeft: approval.TimeLeft, Status: models.ApprovalPending}
			l.deadline = l.clock().Add(time.Duration(approval.TimeLeft) * time.Second)
			l.waiting = append([]services.ItemInput(nil), items...)
		})
		return nil, err
	}
	if err != nil {
		l.update(func(s *Snapshot) { s.Err = err })
		return nil, err
	}

	l.update(func(s *Snapshot) {
		s.Err = nil
		s.Order = state.Order
		s.SessionID = state.SessionID
	})
	return state.Order, nil
}

func (l *SyncLoop) submit(ctx context.Context, token string, items []services.ItemInput) (*State, error) {
	l.mu.Lock()
	session := l.snap.SessionID
	l.mu.Unlock()

	return l.API.Submit(ctx, l.Table, SubmitRequest{
		RestaurantID:        l.RestaurantID,
		Items:               items,
		CustomerToken:       token,
		SessionID:           session,
		CustomerFingerprint: l.Fingerprint,
	})
}

// Place submits the table order, retrying once after a stale session.
func (l *SyncLoop) Place(ctx context.Context) error {
	err := l.place(ctx)
	if errors.Is(err, ErrSessionMismatch) {
		if rerr := l.Refresh(ctx); rerr != nil {
			return rerr
		}
		err = l.place(ctx)
	}
	if err != nil {
		return err
	}
	return l.Refresh(ctx)
}

func (l *SyncLoop) place(ctx context.Context) error {
	l.mu.Lock()
	session := l.snap.SessionID
	l.mu.Unlock()
	return l.API.Place(ctx, l.Table, session)
}

func (l *SyncLoop) Approve(ctx context.Context, requestID string) error {
	return l.resolve(ctx, requestID, services.ActionApprove)
}

func (l *SyncLoop) Deny(ctx context.Context, requestID string) error {
	return l.resolve(ctx, requestID, services.ActionDeny)
}

func (l *SyncLoop) resolve(ctx context.Context, requestID, action string) error {
	token, err := l.Tokens.Token()
	if err != nil {
		return err
	}
	if err := l.API.Resolve(ctx, l.Table, requestID, action, token); err != nil {
		return err
	}
	l.PollIncoming(ctx)
	return nil
}

// PollApproval advances the countdown of this device's own request and asks
// the server for its outcome. When the server cannot be reached the request
// stays pending on screen.
func (l *SyncLoop) PollApproval(ctx context.Context) {
	l.mu.Lock()
	if l.snap.Approval == nil || l.snap.Approval.Status != models.ApprovalPending {
		l.mu.Unlock()
		return
	}
	left := int(math.Ceil(l.deadline.Sub(l.clock()).Seconds()))
	if left < 0 {
		left = 0
	}
	l.snap.Approval.TimeLeft = left
	l.mu.Unlock()

	token, err := l.Tokens.Token()
	if err != nil {
		return
	}
	status, err := l.API.RequestAccess(ctx, l.Table, token, l.Fingerprint)
	if err != nil {
		utils.InfoLogger.WithFields(logrus.Fields{"table": l.Table}).Debugf("approval poll failed: %v", err)
		l.update(func(s *Snapshot) {})
		return
	}

	var replay []services.ItemInput
	l.update(func(s *Snapshot) {
		switch {
		case status.Approved:
			s.Approval = &ApprovalView{RequestID: status.RequestID, Status: models.ApprovalApproved}
			replay = l.waiting
			l.waiting = nil
		case status.Status == models.ApprovalPending:
			s.Approval = &ApprovalView{RequestID: status.RequestID, TimeLeft: status.TimeLeft, Status: status.Status}
			l.deadline = l.clock().Add(time.Duration(status.TimeLeft) * time.Second)
		default:
			s.Approval = &ApprovalView{RequestID: status.RequestID, Status: status.Status}
			l.waiting = nil
		}
	})

	if replay != nil {
		if _, err := l.SetItems(ctx, replay); err != nil {
			utils.InfoLogger.WithField("table", l.Table).Debugf("replay after approval failed: %v", err)
		}
	}
}

// PollIncoming lists requests from other guests while this device is a
// participant of the order.
func (l *SyncLoop) PollIncoming(ctx context.Context) {
	token, err := l.Tokens.Token()
	if err != nil {
		return
	}
	l.mu.Lock()
	participant := l.snap.Order != nil && l.snap.Order.HasParticipant(token)
	l.mu.Unlock()
	if !participant {
		return
	}

	requests, err := l.API.Pending(ctx, l.Table, token)
	if err != nil {
		return
	}
	l.update(func(s *Snapshot) { s.Incoming = requests })
}

func (l *SyncLoop) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *SyncLoop) update(fn func(s *Snapshot)) {
	l.mu.Lock()
	fn(&l.snap)
	snap := l.copySnap()
	l.mu.Unlock()

	if l.OnUpdate != nil {
		l.OnUpdate(snap)
	}
}

func (l *SyncLoop) copySnap() Snapshot {
	snap := l.snap
	if l.snap.Approval != nil {
		a := *l.snap.Approval
		snap.Approval = &a
	}
	snap.Incoming = append([]services.PendingRequest(nil), l.snap.Incoming...)
	return snap
}
