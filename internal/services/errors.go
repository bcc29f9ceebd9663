package services

import (
	"errors"

	"github.com/maison-panier/api/internal/repositories"
)

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// mapRepoError folds a repository failure onto the caller's sentinel set.
func mapRepoError(err error, notFound, conflict, unavailable error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return notFound
		case repoErr.IsConflict():
			return conflict
		case repoErr.IsUnavailable():
			return unavailable
		}
	}
	return unavailable
}
