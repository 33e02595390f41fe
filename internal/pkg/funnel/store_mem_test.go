package funnel

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

// memStore applies patches with ledger.Apply under a lock.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]ledger.Document
	users     map[string]*models.User
	pages     []models.QuestionnairePage
	commits   int
	failNext  error
	lookupErr error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]ledger.Document{}, users: map[string]*models.User{}}
}

func (m *memStore) addCode(code string, active bool) ledger.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := ledger.Document{ID: uuid.NewString(), Code: code, Active: active}
	m.docs[doc.ID] = doc
	return doc
}

func (m *memStore) doc(code string) ledger.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.Code == code {
			return d.Clone()
		}
	}
	return ledger.Document{}
}

func (m *memStore) FindReferral(_ context.Context, code string) (*ledger.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, d := range m.docs {
		if d.Code == code {
			c := d.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindReferralByID(_ context.Context, id string) (*ledger.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	c := d.Clone()
	return &c, nil
}

func (m *memStore) Referrals(_ context.Context) ([]ledger.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Document
	for _, d := range m.docs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) Members(_ context.Context, referralID string, list ledger.List) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, ref := range m.docs[referralID].Refs(list) {
		if u, ok := m.users[ref.Ref]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memStore) Commit(_ context.Context, patch *ledger.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	doc, ok := m.docs[patch.ID()]
	if !ok {
		return ledger.ErrDocumentMismatch
	}
	next, err := ledger.Apply(doc, patch)
	if err != nil {
		return err
	}
	m.docs[next.ID] = next
	m.commits++
	return nil
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.Username != nil {
		for _, u := range m.users {
			if u.Username != nil && *u.Username == *user.Username {
				return ErrDuplicate
			}
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username != nil && *u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return errors.New("user not found")
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) Pages(_ context.Context) ([]models.QuestionnairePage, error) {
	return m.pages, nil
}

func (m *memStore) user(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type recordingRevalidator struct {
	mu   sync.Mutex
	tags []string
}

func (r *recordingRevalidator) Revalidate(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
	return nil
}

type stubVerifier struct {
	ok  bool
	msg string
}

func (v stubVerifier) Verify(context.Context, string) (bool, string) {
	return v.ok, v.msg
}
