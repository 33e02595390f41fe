package funnel

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/app/repository"
	"github.com/ManuelReschke/MemberGate/internal/pkg/ledger"
)

// ErrDuplicate is returned by a Store when a unique value is already taken.
var ErrDuplicate = errors.New("funnel: duplicate value")

// Store is the persistence the funnel needs. Finders return nil, nil when
// nothing matches.
type Store interface {
	FindReferral(ctx context.Context, code string) (*ledger.Document, error)
	FindReferralByID(ctx context.Context, id string) (*ledger.Document, error)
	Referrals(ctx context.Context) ([]ledger.Document, error)
	Members(ctx context.Context, referralID string, list ledger.List) ([]models.User, error)
	Commit(ctx context.Context, patch *ledger.Patch) error

	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	Pages(ctx context.Context) ([]models.QuestionnairePage, error)
}

// RepositoryStore adapts the gorm repositories to Store.
type RepositoryStore struct {
	repos *repository.Repositories
}

func NewRepositoryStore(repos *repository.Repositories) *RepositoryStore {
	return &RepositoryStore{repos: repos}
}

func (s *RepositoryStore) FindReferral(_ context.Context, code string) (*ledger.Document, error) {
	rc, err := s.repos.Referral.GetByCode(code)
	if err != nil {
		return nil, notFoundIsNil(err)
	}
	doc := rc.Document()
	return &doc, nil
}

func (s *RepositoryStore) FindReferralByID(_ context.Context, id string) (*ledger.Document, error) {
	doc, err := s.repos.Referral.Document(id)
	if err != nil {
		return nil, notFoundIsNil(err)
	}
	return &doc, nil
}

func (s *RepositoryStore) Referrals(_ context.Context) ([]ledger.Document, error) {
	codes, err := s.repos.Referral.List()
	if err != nil {
		return nil, err
	}
	docs := make([]ledger.Document, 0, len(codes))
	for i := range codes {
		docs = append(docs, codes[i].Document())
	}
	return docs, nil
}

func (s *RepositoryStore) Members(_ context.Context, referralID string, list ledger.List) ([]models.User, error) {
	members, err := s.repos.Referral.Memberships(referralID, list)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(members))
	for _, m := range members {
		if m.User != nil {
			users = append(users, *m.User)
		}
	}
	return users, nil
}

func (s *RepositoryStore) Commit(_ context.Context, patch *ledger.Patch) error {
	return s.repos.Referral.CommitPatch(patch)
}

func (s *RepositoryStore) CreateUser(_ context.Context, user *models.User) error {
	return duplicate(s.repos.User.Create(user))
}

func (s *RepositoryStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	u, err := s.repos.User.GetByID(id)
	if err != nil {
		return nil, notFoundIsNil(err)
	}
	return u, nil
}

func (s *RepositoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, err := s.repos.User.GetByEmail(email)
	if err != nil {
		return nil, notFoundIsNil(err)
	}
	return u, nil
}

func (s *RepositoryStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, err := s.repos.User.GetByUsername(username)
	if err != nil {
		return nil, notFoundIsNil(err)
	}
	return u, nil
}

func (s *RepositoryStore) UpdateUser(_ context.Context, user *models.User) error {
	return duplicate(s.repos.User.Update(user))
}

func (s *RepositoryStore) Pages(_ context.Context) ([]models.QuestionnairePage, error) {
	return s.repos.Questionnaire.Pages()
}

func notFoundIsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
