package tasks

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is an in-memory task, collaborator, and app-user store.
// Safe for concurrent use. Suitable for a single-server deployment; the
// interfaces it satisfies keep a database-backed replacement drop-in.
type Store struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	users    map[string]*AppUser // keyed by id
	byEmail  map[string]string   // email -> user id
	collabs  []Collaborator
	watchers []watcher
	nextWID  uint64
	now      func() time.Time
}

type watcher struct {
	id uint64
	ch chan Change
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock injects the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		tasks:   make(map[string]*Task),
		users:   make(map[string]*AppUser),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch subscribes to the change feed. The channel is buffered; slow
// consumers drop changes rather than block mutations. cancel removes
// the subscription and closes the channel.
func (s *Store) Watch() (ch <-chan Change, cancel func()) {
	c := make(chan Change, 32)

	s.mu.Lock()
	s.nextWID++
	id := s.nextWID
	s.watchers = append(s.watchers, watcher{id: id, ch: c})
	s.mu.Unlock()

	return c, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				close(w.ch)
				return
			}
		}
	}
}

// publish must be called with s.mu held. The task is snapshotted so
// consumers never alias store-internal state.
func (s *Store) publish(kind ChangeKind, t *Task) {
	c := Change{Kind: kind}
	if t != nil {
		snap := *t
		c.Task = &snap
	}
	for _, w := range s.watchers {
		select {
		case w.ch <- c:
		default:
		}
	}
}

// ListTasks returns all tasks ordered by creation time, newest first.
func (s *Store) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetTask returns the task by id.
func (s *Store) GetTask(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return *t, nil
}

// CreateTask creates a task owned by creatorID.
func (s *Store) CreateTask(creatorID string, data CreateTaskData) (Task, error) {
	if strings.TrimSpace(data.Title) == "" {
		return Task{}, fmt.Errorf("title is required: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[creatorID]; !ok {
		return Task{}, fmt.Errorf("creator %s: %w", creatorID, ErrNotFound)
	}
	if _, ok := s.users[data.AssignedTo]; !ok {
		return Task{}, fmt.Errorf("assignee %s: %w", data.AssignedTo, ErrNotFound)
	}

	now := s.now()
	t := &Task{
		ID:          newID(),
		Title:       strings.TrimSpace(data.Title),
		Description: data.Description,
		DueDate:     data.DueDate,
		CreatedBy:   creatorID,
		AssignedTo:  data.AssignedTo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[t.ID] = t
	s.publish(ChangeCreated, t)
	return *t, nil
}

// UpdateTask edits a task. Only the creator may.
func (s *Store) UpdateTask(userID, taskID string, data UpdateTaskData) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if !t.CanEdit(userID) {
		return Task{}, fmt.Errorf("user %s may not edit task %s: %w", userID, taskID, ErrPermission)
	}

	if data.Title != nil {
		if strings.TrimSpace(*data.Title) == "" {
			return Task{}, fmt.Errorf("title is required: %w", ErrValidation)
		}
		t.Title = strings.TrimSpace(*data.Title)
	}
	if data.Description != nil {
		t.Description = *data.Description
	}
	if data.DueDate != nil {
		t.DueDate = data.DueDate
	}
	if data.AssignedTo != nil {
		if _, ok := s.users[*data.AssignedTo]; !ok {
			return Task{}, fmt.Errorf("assignee %s: %w", *data.AssignedTo, ErrNotFound)
		}
		t.AssignedTo = *data.AssignedTo
	}
	t.UpdatedAt = s.now()

	s.publish(ChangeUpdated, t)
	return *t, nil
}

// ToggleComplete flips a task's completion. The assignee or creator may.
func (s *Store) ToggleComplete(userID, taskID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if !t.CanComplete(userID) {
		return Task{}, fmt.Errorf("user %s may not complete task %s: %w", userID, taskID, ErrPermission)
	}

	t.Completed = !t.Completed
	t.UpdatedAt = s.now()
	s.publish(ChangeUpdated, t)
	return *t, nil
}

// DeleteTask removes a task. Only the creator may.
func (s *Store) DeleteTask(userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if !t.CanEdit(userID) {
		return fmt.Errorf("user %s may not delete task %s: %w", userID, taskID, ErrPermission)
	}

	delete(s.tasks, taskID)
	s.publish(ChangeDeleted, t)
	return nil
}

// UpsertUser creates or updates the profile for email and returns it.
func (s *Store) UpsertUser(email, name string) AppUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.upsertUserLocked(email, name)
}

func (s *Store) upsertUserLocked(email, name string) *AppUser {
	if id, ok := s.byEmail[email]; ok {
		u := s.users[id]
		if name != "" {
			u.Name = name
		}
		return u
	}
	u := &AppUser{ID: newID(), Email: email, Name: name}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return u
}

// SetAdmin flags the profile for email as admin, creating it if needed.
func (s *Store) SetAdmin(email string, admin bool) AppUser {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.upsertUserLocked(email, "")
	u.Admin = admin
	return *u
}

// UserByEmail returns the profile for email.
func (s *Store) UserByEmail(email string) (AppUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return AppUser{}, false
	}
	return *s.users[id], true
}

// Collaborators returns the pair ordered by position.
func (s *Store) Collaborators() []Collaborator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Collaborator, len(s.collabs))
	copy(out, s.collabs)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ReplaceCollaborators swaps the allow-list for the two emails, creating
// profiles as needed. This is the admin screen's save operation: the old
// pair is removed wholesale and the new pair inserted at positions 1 and 2.
func (s *Store) ReplaceCollaborators(email1, name1, email2, name2 string) ([]Collaborator, error) {
	if email1 == "" || email2 == "" {
		return nil, fmt.Errorf("two collaborator emails are required: %w", ErrValidation)
	}
	if email1 == email2 {
		return nil, fmt.Errorf("collaborators must be distinct: %w", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u1 := s.upsertUserLocked(email1, name1)
	u2 := s.upsertUserLocked(email2, name2)

	now := s.now()
	s.collabs = []Collaborator{
		{ID: newID(), UserID: u1.ID, Position: 1, CreatedAt: now},
		{ID: newID(), UserID: u2.ID, Position: 2, CreatedAt: now},
	}

	s.publish(ChangeCollaborators, nil)

	out := make([]Collaborator, len(s.collabs))
	copy(out, s.collabs)
	return out, nil
}

// IsCollaborator reports whether the user for email holds a position.
func (s *Store) IsCollaborator(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return false
	}
	for _, c := range s.collabs {
		if c.UserID == id {
			return true
		}
	}
	return false
}

func newID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
