package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory implementation of every repository interface,
// honouring the same contracts as the sqlite implementation: conditional
// status transitions, atomic vote casting, idempotent joins.
type memStore struct {
	mu           sync.Mutex
	seq          int
	users        map[string]*model.User
	rooms        map[string]*model.Room
	roomOrder    []string
	options      map[string]*model.Option
	optionOrder  []string
	participants map[string]*model.Participant
	joinOrder    []string
}

var (
	_ repository.UserRepository        = (*memStore)(nil)
	_ repository.RoomRepository        = (*memStore)(nil)
	_ repository.OptionRepository      = (*memStore)(nil)
	_ repository.ParticipantRepository = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*model.User{},
		rooms:        map[string]*model.Room{},
		options:      map[string]*model.Option{},
		participants: map[string]*model.Participant{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("email already registered")
		}
	}

	user.ID = m.nextID("user")
	user.CreatedAt = time.Now().UTC()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) CreateRoom(_ context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rooms {
		if r.Code == room.Code {
			return apperror.Conflict("room code already in use")
		}
	}

	room.ID = m.nextID("room")
	room.Status = model.StatusLobby
	room.CreatedAt = time.Now().UTC()
	cp := *room
	m.rooms[room.ID] = &cp
	m.roomOrder = append(m.roomOrder, room.ID)
	return nil
}

func (m *memStore) GetRoomByID(_ context.Context, id string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	if !ok {
		return nil, apperror.NotFound("room", id)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetRoomByCode(_ context.Context, code string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rooms {
		if r.Code == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("room", code)
}

func (m *memStore) ListRoomsForUser(_ context.Context, userID string) ([]model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := []model.Room{}
	for i := len(m.roomOrder) - 1; i >= 0; i-- {
		r := m.rooms[m.roomOrder[i]]
		if r.CreatorID == userID {
			rooms = append(rooms, *r)
			continue
		}
		if _, ok := m.participants[r.ID+"/"+userID]; ok {
			rooms = append(rooms, *r)
		}
	}
	return rooms, nil
}

func (m *memStore) AdvanceToVoting(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return apperror.NotFound("room", roomID)
	}
	if r.Status != model.StatusLobby {
		return apperror.InvalidState("voting has already started for this room")
	}
	r.Status = model.StatusVoting
	return nil
}

func (m *memStore) CompleteRoom(_ context.Context, roomID, finalDecision string, tiebreaker model.Tiebreaker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return apperror.NotFound("room", roomID)
	}
	if r.Status != model.StatusVoting {
		return apperror.InvalidState("room is already completed")
	}
	now := time.Now().UTC()
	r.Status = model.StatusCompleted
	r.FinalDecision = finalDecision
	r.Tiebreaker = tiebreaker
	r.ResolvedAt = &now
	return nil
}

func (m *memStore) CreateOption(_ context.Context, option *model.Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	option.ID = m.nextID("option")
	option.Votes = 0
	cp := *option
	m.options[option.ID] = &cp
	m.optionOrder = append(m.optionOrder, option.ID)
	return nil
}

func (m *memStore) GetOptionByID(_ context.Context, id string) (*model.Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.options[id]
	if !ok {
		return nil, apperror.NotFound("option", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOptions(_ context.Context, roomID string) ([]model.Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	options := []model.Option{}
	for _, id := range m.optionOrder {
		o, ok := m.options[id]
		if ok && o.RoomID == roomID {
			options = append(options, *o)
		}
	}
	return options, nil
}

func (m *memStore) CountOptions(ctx context.Context, roomID string) (int, error) {
	options, err := m.ListOptions(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return len(options), nil
}

func (m *memStore) DeleteOption(_ context.Context, optionID, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.options[optionID]
	if !ok || o.CreatedBy != createdBy {
		return apperror.NotFound("option", optionID)
	}
	delete(m.options, optionID)
	return nil
}

func (m *memStore) JoinRoom(_ context.Context, p *model.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.RoomID + "/" + p.UserID
	if existing, ok := m.participants[key]; ok {
		*p = *existing
		return nil
	}

	room, ok := m.rooms[p.RoomID]
	if !ok {
		return apperror.NotFound("room", p.RoomID)
	}
	if room.MaxParticipants > 0 && m.countParticipantsLocked(p.RoomID) >= room.MaxParticipants {
		return apperror.Conflict("room is full")
	}

	p.ID = m.nextID("participant")
	p.JoinedAt = time.Now().UTC()
	cp := *p
	m.participants[key] = &cp
	m.joinOrder = append(m.joinOrder, key)
	return nil
}

func (m *memStore) GetParticipant(_ context.Context, roomID, userID string) (*model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[roomID+"/"+userID]
	if !ok {
		return nil, apperror.NotFound("participant", userID)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListParticipants(_ context.Context, roomID string) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	participants := []model.Participant{}
	for _, key := range m.joinOrder {
		p, ok := m.participants[key]
		if !ok || p.RoomID != roomID {
			continue
		}
		cp := *p
		if u, ok := m.users[p.UserID]; ok {
			cp.Name = u.Name
		} else {
			cp.Name = "Unknown User"
		}
		participants = append(participants, cp)
	}
	return participants, nil
}

func (m *memStore) CountParticipants(_ context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countParticipantsLocked(roomID), nil
}

func (m *memStore) countParticipantsLocked(roomID string) int {
	n := 0
	for _, p := range m.participants {
		if p.RoomID == roomID {
			n++
		}
	}
	return n
}

func (m *memStore) CastVote(_ context.Context, roomID, userID, optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[roomID+"/"+userID]
	if !ok {
		return apperror.Forbidden("you must join the room before voting")
	}
	if p.HasVoted {
		return apperror.Conflict("you have already voted in this room")
	}

	o, ok := m.options[optionID]
	if !ok || o.RoomID != roomID {
		return apperror.NotFound("option", optionID)
	}

	p.HasVoted = true
	o.Votes++
	return nil
}

// setVotes pins an option's tally directly, for outcome tests.
func (m *memStore) setVotes(optionID string, votes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.options[optionID]; ok {
		o.Votes = votes
	}
}
