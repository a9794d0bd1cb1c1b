package usecase

import (
	"context"
	"fmt"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"

	"github.com/go-playground/validator/v10"
)

// RecipientResolver loads target users and keeps the ones we can deliver to.
type RecipientResolver struct {
	users    persistent.UserRepository
	validate *validator.Validate
}

func NewRecipientResolver(users persistent.UserRepository) *RecipientResolver {
	return &RecipientResolver{
		users:    users,
		validate: validator.New(),
	}
}

// Resolve loads the users for ids, ignoring blanks and duplicates. Unknown ids
// are dropped by the store.
func (r *RecipientResolver) Resolve(ctx context.Context, ids []string) ([]entity.User, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	users, err := r.users.GetByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	return users, nil
}

// FilterEligible keeps users with a syntactically valid e-mail address.
func (r *RecipientResolver) FilterEligible(users []entity.User) []entity.User {
	eligible := make([]entity.User, 0, len(users))
	for _, u := range users {
		if r.validate.Var(u.Email, "required,email") != nil {
			continue
		}
		eligible = append(eligible, u)
	}
	return eligible
}
