package repository

import (
	infradb "github.com/exclusiveng/server/internal/infra/db"

	"github.com/google/uuid"
)

func translate(err error) error {
	return infradb.Translate(err)
}

func isUniqueViolation(err error) bool {
	return infradb.IsUniqueViolation(err)
}

// IDが未設定なら採番する
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
