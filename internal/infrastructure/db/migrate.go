package db

import (
	"edufund-backend/internal/domain/custody"
	"edufund-backend/internal/domain/ledger"
	"edufund-backend/internal/domain/loan"
	"edufund-backend/internal/domain/match"
	"edufund-backend/internal/domain/offer"
	"edufund-backend/internal/domain/scoring"

	"gorm.io/gorm"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&loan.Loan{},
		&offer.Offer{},
		&match.Match{},
		&custody.Account{},
		&custody.Hold{},
		&ledger.Entry{},
		&scoring.Score{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
