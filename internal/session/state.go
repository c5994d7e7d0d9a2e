// internal/session/state.go
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/draft"
	"github.com/THoguet/random-lol/internal/random"
	"github.com/THoguet/random-lol/internal/room"
)

// Persisted keys.
const (
	KeyAssignments   = "randomizer.assignments"
	KeyDisabledLanes = "randomizer.disabledLanes"
	KeyRerollBank    = "randomizer.reRollBank"
	KeyRerollBankMax = "randomizer.reRollBankMax"
	KeyBlacklist     = "randomizer.blacklistedChampions"
	KeyFearless      = "randomizer.fearlessDraftEnabled"
	KeyRosterStamp   = "randomizer.previousChampionStamp"
)

var allKeys = []string{
	KeyAssignments, KeyDisabledLanes, KeyRerollBank, KeyRerollBankMax,
	KeyBlacklist, KeyFearless, KeyRosterStamp,
}

var (
	ErrNoRerolls    = errors.New("no rerolls left")
	ErrNotInRoom    = errors.New("not in a room")
	ErrLaneDisabled = errors.New("lane is disabled")
)

// RoomDelegate carries mutations to the room that owns the draft while the
// session is in multiplayer mode.
type RoomDelegate interface {
	RollAll(ctx context.Context) error
	RerollLane(ctx context.Context, lane champion.Lane) error
	ToggleLane(ctx context.Context, lane champion.Lane) error
	SelectLane(ctx context.Context, lane champion.Lane) error
}

// State is the client-side draft. Solo, it rolls locally and persists
// through its Store. After EnterRoom every mutation goes to the room and the
// view follows the snapshots passed to ApplySnapshot.
type State struct {
	mu     sync.Mutex
	store  Store
	src    random.Source
	logger *logrus.Logger

	roster      *champion.Roster
	stamp       string
	assignments draft.Assignments
	disabled    map[champion.Lane]bool
	bank        int
	bankMax     int
	blacklist   []string
	fearless    bool

	delegate RoomDelegate
	roomID   string
	snapshot *room.Snapshot

	// written remembers the last bytes persisted per key so our own writes
	// echoed back by the store are ignored.
	written      map[string][]byte
	observers    map[int]func(View)
	nextObserver int
}

// New loads the persisted state from store. Missing keys take defaults;
// fearless draft starts enabled.
func New(ctx context.Context, store Store, src random.Source, logger *logrus.Logger) (*State, error) {
	s := &State{
		store:     store,
		src:       src,
		logger:    logger,
		roster:    champion.EmptyRoster(),
		disabled:  map[champion.Lane]bool{},
		blacklist: []string{},
		fearless:  true,
		written:   map[string][]byte{},
		observers: map[int]func(View){},
	}
	for _, key := range allKeys {
		data, ok, err := store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if !ok {
			continue
		}
		if err := s.decodeLocked(key, data); err != nil {
			logger.WithError(err).WithField("key", key).Warn("Ignoring unreadable stored value")
			continue
		}
		s.written[key] = data
	}
	return s, nil
}

// Watch follows writes made to the store by others, reloading the affected
// field and notifying observers. The returned func stops watching.
func (s *State) Watch(ctx context.Context) (func(), error) {
	cancels := make([]func(), 0, len(allKeys))
	stop := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, key := range allKeys {
		key := key
		cancel, err := s.store.Subscribe(ctx, key, func(v []byte) { s.external(key, v) })
		if err != nil {
			stop()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}
	return stop, nil
}

func (s *State) external(key string, data []byte) {
	s.mu.Lock()
	if bytes.Equal(s.written[key], data) {
		s.mu.Unlock()
		return
	}
	if err := s.decodeLocked(key, data); err != nil {
		s.mu.Unlock()
		s.logger.WithError(err).WithField("key", key).Warn("Ignoring unreadable stored value")
		return
	}
	s.written[key] = data
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()
	notify(observers, view)
}

// Subscribe registers fn to receive the view after every change.
func (s *State) Subscribe(fn func(View)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// View returns the current picture of the session.
func (s *State) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// RollAssignments draws every active lane again and refills the bank. With
// fearless draft on, the champions being replaced join the blacklist first.
func (s *State) RollAssignments(ctx context.Context) error {
	if d := s.currentDelegate(); d != nil {
		return d.RollAll(ctx)
	}
	return s.update(ctx, func() ([]string, error) {
		blacklist := s.blacklist
		if s.fearless {
			blacklist = appendNew(blacklist, s.assignments)
		}
		active := draft.ActiveLanes(s.disabled)
		a, err := draft.RollAll(s.roster, active, draft.NewNameSet(blacklist...), s.src)
		if err != nil {
			return nil, err
		}
		keys := []string{KeyAssignments, KeyRerollBank, KeyRerollBankMax}
		if len(blacklist) != len(s.blacklist) {
			keys = append(keys, KeyBlacklist)
		}
		s.blacklist = blacklist
		s.assignments = a
		s.bank = len(active)
		s.bankMax = len(active)
		return keys, nil
	})
}

// ChangeChampion rerolls one lane. Without force it needs a reroll in the
// bank; a forced reroll always goes through and may leave the bank negative.
func (s *State) ChangeChampion(ctx context.Context, lane champion.Lane, force bool) error {
	if !lane.Valid() {
		return fmt.Errorf("%q: %w", lane, champion.ErrUnknownLane)
	}
	if d := s.currentDelegate(); d != nil {
		return d.RerollLane(ctx, lane)
	}
	return s.update(ctx, func() ([]string, error) {
		if s.disabled[lane] {
			return nil, fmt.Errorf("%s: %w", lane, ErrLaneDisabled)
		}
		if !force && s.bank < 1 {
			return nil, ErrNoRerolls
		}
		c, err := draft.RollLane(s.roster, lane, s.assignments, draft.NewNameSet(s.blacklist...), s.src)
		if err != nil {
			return nil, err
		}
		s.bank--
		s.assignments = s.assignments.With(lane, c)
		return []string{KeyAssignments, KeyRerollBank}, nil
	})
}

// ToggleLane enables or disables lane and clears its assignment. Disabling
// takes a reroll from the bank, enabling gives one back.
func (s *State) ToggleLane(ctx context.Context, lane champion.Lane) error {
	if !lane.Valid() {
		return fmt.Errorf("%q: %w", lane, champion.ErrUnknownLane)
	}
	if d := s.currentDelegate(); d != nil {
		return d.ToggleLane(ctx, lane)
	}
	return s.update(ctx, func() ([]string, error) {
		if s.disabled[lane] {
			delete(s.disabled, lane)
			s.bank++
		} else {
			s.disabled[lane] = true
			s.bank--
		}
		s.assignments = s.assignments.With(lane, nil)
		return []string{KeyDisabledLanes, KeyRerollBank, KeyAssignments}, nil
	})
}

// SelectLane claims lane in the current room. Solo sessions have nothing to
// claim.
func (s *State) SelectLane(ctx context.Context, lane champion.Lane) error {
	if !lane.Valid() {
		return fmt.Errorf("%q: %w", lane, champion.ErrUnknownLane)
	}
	d := s.currentDelegate()
	if d == nil {
		return ErrNotInRoom
	}
	return d.SelectLane(ctx, lane)
}

// SetFearlessDraft turns fearless draft on or off. Turning it off clears the
// blacklist.
func (s *State) SetFearlessDraft(ctx context.Context, on bool) error {
	return s.update(ctx, func() ([]string, error) {
		s.fearless = on
		if on {
			return []string{KeyFearless}, nil
		}
		s.blacklist = []string{}
		return []string{KeyFearless, KeyBlacklist}, nil
	})
}

func (s *State) ResetBlacklist(ctx context.Context) error {
	return s.update(ctx, func() ([]string, error) {
		s.blacklist = []string{}
		return []string{KeyBlacklist}, nil
	})
}

// SetRoster installs a newly loaded roster. An empty roster clears the
// draft; a roster that differs from the one last rolled with triggers a
// fresh solo roll.
func (s *State) SetRoster(ctx context.Context, roster *champion.Roster) error {
	if roster == nil {
		roster = champion.EmptyRoster()
	}
	var reroll bool
	err := s.update(ctx, func() ([]string, error) {
		s.roster = roster
		if roster.Len() == 0 {
			s.assignments = draft.Empty()
			s.stamp = ""
			return []string{KeyAssignments, KeyRosterStamp}, nil
		}
		stamp := roster.Stamp()
		if stamp == s.stamp {
			return nil, nil
		}
		s.stamp = stamp
		reroll = s.delegate == nil
		return []string{KeyRosterStamp}, nil
	})
	if err != nil || !reroll {
		return err
	}
	return s.RollAssignments(ctx)
}

// NotUsed lists the champions of lane that are neither assigned anywhere
// nor blacklisted.
func (s *State) NotUsed(lane champion.Lane) []champion.Champion {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.viewLocked()
	exclude := v.Assignments.Names().Union(draft.NewNameSet(s.blacklist...))
	return draft.Candidates(s.roster, lane, exclude)
}

// BlacklistedByLane lists the blacklisted champions that play lane.
func (s *State) BlacklistedByLane(lane champion.Lane) []champion.Champion {
	s.mu.Lock()
	defer s.mu.Unlock()
	bl := draft.NewNameSet(s.blacklist...)
	out := []champion.Champion{}
	for _, c := range s.roster.ByLane(lane) {
		if bl.Has(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// EnterRoom hands authority to d. A snapshot already received for roomID
// is kept; anything else is discarded.
func (s *State) EnterRoom(roomID string, d RoomDelegate) {
	s.mu.Lock()
	s.delegate = d
	s.roomID = roomID
	if s.snapshot != nil && s.snapshot.RoomID != roomID {
		s.snapshot = nil
	}
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()
	notify(observers, view)
}

// ApplySnapshot records the authoritative room state. It wins over anything
// the session believed before.
func (s *State) ApplySnapshot(snap room.Snapshot) {
	s.mu.Lock()
	s.snapshot = &snap
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()
	notify(observers, view)
}

// LeaveRoom returns to solo mode with the local state as it was.
func (s *State) LeaveRoom() {
	s.mu.Lock()
	s.delegate = nil
	s.roomID = ""
	s.snapshot = nil
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()
	notify(observers, view)
}

func (s *State) currentDelegate() RoomDelegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate
}

// update runs fn under the lock, then persists the keys it reports and
// notifies observers. Store calls happen after the lock is released since a
// store may call back into Watch subscribers synchronously.
func (s *State) update(ctx context.Context, fn func() ([]string, error)) error {
	s.mu.Lock()
	keys, err := fn()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	writes := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := json.Marshal(s.valueLocked(key))
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encode %s: %w", key, err)
		}
		writes[key] = data
		s.written[key] = data
	}
	view, observers := s.viewLocked(), s.observersLocked()
	s.mu.Unlock()

	for _, key := range keys {
		if err := s.store.Set(ctx, key, writes[key]); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to persist session state")
		}
	}
	notify(observers, view)
	return nil
}

func (s *State) valueLocked(key string) any {
	switch key {
	case KeyAssignments:
		return s.assignments
	case KeyDisabledLanes:
		return s.disabledLanesLocked()
	case KeyRerollBank:
		return s.bank
	case KeyRerollBankMax:
		return s.bankMax
	case KeyBlacklist:
		return s.blacklist
	case KeyFearless:
		return s.fearless
	case KeyRosterStamp:
		return s.stamp
	}
	return nil
}

func (s *State) decodeLocked(key string, data []byte) error {
	switch key {
	case KeyAssignments:
		return json.Unmarshal(data, &s.assignments)
	case KeyDisabledLanes:
		var lanes []champion.Lane
		if err := json.Unmarshal(data, &lanes); err != nil {
			return err
		}
		disabled := map[champion.Lane]bool{}
		for _, l := range lanes {
			if l.Valid() {
				disabled[l] = true
			}
		}
		s.disabled = disabled
		return nil
	case KeyRerollBank:
		return json.Unmarshal(data, &s.bank)
	case KeyRerollBankMax:
		return json.Unmarshal(data, &s.bankMax)
	case KeyBlacklist:
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		s.blacklist = names
		return nil
	case KeyFearless:
		return json.Unmarshal(data, &s.fearless)
	case KeyRosterStamp:
		return json.Unmarshal(data, &s.stamp)
	}
	return nil
}

func (s *State) disabledLanesLocked() []champion.Lane {
	out := []champion.Lane{}
	for _, l := range champion.Lanes {
		if s.disabled[l] {
			out = append(out, l)
		}
	}
	return out
}

func (s *State) viewLocked() View {
	v := View{
		Fearless:  s.fearless,
		Blacklist: append([]string(nil), s.blacklist...),
	}
	if s.delegate != nil {
		v.Multiplayer = true
		v.RoomID = s.roomID
		v.DisabledLanes = []champion.Lane{}
		if snap := s.snapshot; snap != nil {
			v.Players = append([]room.Player(nil), snap.Players...)
			v.Assignments = snap.Assignments
			v.DisabledLanes = append(v.DisabledLanes, snap.DisabledLanes...)
			v.RerollBank = snap.RerollBank
			v.RerollBankMax = snap.RerollBankMax
		}
		return v
	}
	v.Assignments = s.assignments
	v.DisabledLanes = s.disabledLanesLocked()
	v.RerollBank = s.bank
	v.RerollBankMax = s.bankMax
	return v
}

func (s *State) observersLocked() []func(View) {
	out := make([]func(View), 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}

func notify(observers []func(View), v View) {
	for _, fn := range observers {
		fn(v)
	}
}

// appendNew returns names extended with every assigned champion not yet in
// it. names itself is not modified.
func appendNew(names []string, a draft.Assignments) []string {
	seen := draft.NewNameSet(names...)
	out := make([]string, len(names), len(names)+len(a))
	copy(out, names)
	for _, c := range a {
		if c != nil && !seen.Has(c.Name) {
			out = append(out, c.Name)
			seen.Add(c.Name)
		}
	}
	return out
}
