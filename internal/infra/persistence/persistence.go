// Package persistence selects the credential store implementation from configuration and
// exposes its repositories to the dependency graph.
package persistence

import (
	"log/slog"

	"authflow/config"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/repository"
	"authflow/internal/errors"
	"authflow/internal/infra/persistence/memory"
	"authflow/internal/infra/persistence/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry `optional:"true"`
}

// Result carries the transaction manager and autocommit repositories of the selected store.
type Result struct {
	fx.Out

	TxManager      repository.TransactionManager
	Repositories   repository.RepositoryFactory
	Accounts       repository.AccountRepository
	Profiles       repository.ProfileRepository
	OAuthStates    repository.OAuthStateRepository
	OAuthCallbacks repository.OAuthCallbackRepository
	SocialAccounts repository.SocialAccountRepository
	Sessions       repository.SessionRepository
}

// New builds the store named by storage.driver.
func New(params Params) (Result, error) {
	var (
		txManager repository.TransactionManager
		factory   repository.RepositoryFactory
	)

	switch params.Config.Storage.Driver {
	case constants.StorageDriverPostgres, "":
		if params.Config.Postgres == nil {
			return Result{}, errors.New("postgres storage selected but postgres is not configured")
		}
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lifecycle,
			Config:    params.Config,
			Logger:    params.Logger,
			Registry:  params.Registry,
		})
		if err != nil {
			return Result{}, err
		}
		txManager = postgres.NewTransactionManager(db)
		factory = postgres.NewRepositoryFactory(db)
	case constants.StorageDriverMemory:
		params.Logger.Warn("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		txManager = memory.NewTransactionManager(store)
		factory = memory.NewRepositoryFactory(store)
	default:
		return Result{}, errors.Errorf("unknown storage driver: %s", params.Config.Storage.Driver)
	}

	return Result{
		TxManager:      txManager,
		Repositories:   factory,
		Accounts:       factory.AccountRepo(),
		Profiles:       factory.ProfileRepo(),
		OAuthStates:    factory.OAuthStateRepo(),
		OAuthCallbacks: factory.OAuthCallbackRepo(),
		SocialAccounts: factory.SocialAccountRepo(),
		Sessions:       factory.SessionRepo(),
	}, nil
}
