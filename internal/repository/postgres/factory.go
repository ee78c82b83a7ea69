package postgres

import (
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Partners        repo.Partners
	Users           repo.Users
	Events          repo.Events
	Ledger          repo.Ledger
	Wallets         repo.Wallets
	Jobs            repo.Jobs
	WebhookFailures repo.WebhookFailures
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Partners:        &partnersRepo{pool},
		Users:           &usersRepo{pool},
		Events:          &eventsRepo{pool},
		Ledger:          &ledgerRepo{pool},
		Wallets:         &walletsRepo{pool},
		Jobs:            &jobsRepo{pool},
		WebhookFailures: &webhookFailuresRepo{pool},
	}
}
