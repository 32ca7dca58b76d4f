// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"strconv"

	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/entity"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/domain/repository"
	"authflow/internal/errors"

	"go.uber.org/fx"
)

// AccountProvisioner creates accounts and gives them a unique handle and a profile.
// The unique index on the handle column is the only serialization between concurrent
// provisioners; the retry loops here decide what to try next when it rejects a write.
type AccountProvisioner struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	suffix   func(n int) string
	logger   *slog.Logger
}

// AccountProvisionerParams holds dependencies for AccountProvisioner, injected by Fx.
type AccountProvisionerParams struct {
	fx.In

	Accounts repository.AccountRepository
	Profiles repository.ProfileRepository
	Logger   *slog.Logger
}

// NewAccountProvisioner is the constructor for AccountProvisioner.
func NewAccountProvisioner(params AccountProvisionerParams) *AccountProvisioner {
	return &AccountProvisioner{
		accounts: params.Accounts,
		profiles: params.Profiles,
		suffix:   randomBase36,
		logger:   params.Logger,
	}
}

func (p *AccountProvisioner) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, p.logger)
}

// CreateAccount inserts account and assigns its handle with the optimistic strategy.
// A duplicate email is reported as ErrAccountAlreadyExists.
func (p *AccountProvisioner) CreateAccount(ctx context.Context, account *entity.Account, basis string) error {
	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return domainerrors.ErrAccountAlreadyExists
		}

		return errors.Wrap(err, "failed to create account")
	}

	return p.AssignHandleOptimistic(ctx, account, basis)
}

// AssignHandleOptimistic writes the derived handle and, while the unique index rejects it,
// retries with a random base-36 suffix that grows from 3 to 6 characters.
func (p *AccountProvisioner) AssignHandleOptimistic(ctx context.Context, account *entity.Account, basis string) error {
	base := p.DeriveHandle(basis)

	for attempt := range constants.HandleMaxAttempts {
		candidate := base
		if attempt > 0 {
			candidate = base + p.suffix(min(attempt+2, constants.HandleMaxRandomSuffixLen))
		}

		done, err := p.tryAssign(ctx, account, candidate)
		if err != nil {
			return err
		}
		if done {
			return p.ensureProfile(ctx, account)
		}

		p.log(ctx).Debug("Handle collision, retrying",
			slog.String("handle", candidate),
			slog.Int("attempt", attempt+1),
		)
	}

	p.log(ctx).Error("Handle provisioning exhausted attempts",
		slog.String("account_id", account.ID.String()),
		slog.String("base", base),
	)

	return domainerrors.ErrHandleProvisioningFailed
}

// AssignHandleSequential tries base, base-1, base-2, ... for a free handle and writes the
// first one that looks free.
//
// Another provisioner can take the same candidate between the existence check and the
// write. That race is not prevented: the conditional write detects it, and the strategy
// then falls back to AssignHandleOptimistic from the same basis.
func (p *AccountProvisioner) AssignHandleSequential(ctx context.Context, account *entity.Account, basis string) error {
	base := p.DeriveHandle(basis)

	candidate := base
	for n := 1; n <= constants.HandleMaxAttempts; n++ {
		taken, err := p.accounts.ExistsByHandle(ctx, candidate)
		if err != nil {
			return errors.Wrap(err, "failed to check handle")
		}
		if taken {
			candidate = base + "-" + strconv.Itoa(n)

			continue
		}

		done, err := p.tryAssign(ctx, account, candidate)
		if err != nil {
			return err
		}
		if done {
			return p.ensureProfile(ctx, account)
		}

		p.log(ctx).Warn("Handle taken between check and write",
			slog.String("handle", candidate),
		)

		break
	}

	return p.AssignHandleOptimistic(ctx, account, basis)
}

// tryAssign reports true once account carries a handle, either candidate or one that
// another writer assigned first.
func (p *AccountProvisioner) tryAssign(ctx context.Context, account *entity.Account, candidate string) (bool, error) {
	err := p.accounts.AssignHandle(ctx, account.ID, candidate)
	switch {
	case err == nil:
		account.Handle = candidate

		return true, nil
	case errors.Is(err, repository.ErrHandleTaken):
		return false, nil
	case errors.Is(err, repository.ErrHandleAlreadyAssigned):
		current, findErr := p.accounts.FindByID(ctx, account.ID)
		if findErr != nil {
			return false, errors.Wrap(findErr, "failed to reload account")
		}
		account.Handle = current.Handle

		return true, nil
	default:
		return false, errors.Wrap(err, "failed to assign handle")
	}
}

// ensureProfile creates the profile that mirrors the handle, once per account.
func (p *AccountProvisioner) ensureProfile(ctx context.Context, account *entity.Account) error {
	_, err := p.profiles.FindByAccountID(ctx, account.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return errors.Wrap(err, "failed to find profile")
	}

	profile := &entity.Profile{
		AccountID:           account.ID,
		Username:            account.Handle,
		OnboardingCompleted: false,
	}
	if err := p.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			if _, findErr := p.profiles.FindByAccountID(ctx, account.ID); findErr == nil {
				return nil
			}
		}

		return errors.Wrap(err, "failed to create profile")
	}

	p.log(ctx).Info("Account provisioned",
		slog.String("account_id", account.ID.String()),
		slog.String("handle", account.Handle),
	)

	return nil
}

// DeriveHandle normalizes basis and pads results shorter than the minimum handle length.
func (p *AccountProvisioner) DeriveHandle(basis string) string {
	base := entity.NormalizeHandleBasis(basis)
	if len(base) < constants.HandleMinLength {
		base = constants.HandleFallbackPrefix + base + p.suffix(4)
	}

	return base
}

// EnsureHandle assigns a handle with the sequential strategy when account has none.
func (p *AccountProvisioner) EnsureHandle(ctx context.Context, account *entity.Account, basis string) error {
	if account.HasHandle() {
		return nil
	}

	return p.AssignHandleSequential(ctx, account, basis)
}

// randomBase36 returns n characters drawn uniformly from [0-9a-z].
func randomBase36(n int) string {
	return randomString(n, base36Alphabet)
}
