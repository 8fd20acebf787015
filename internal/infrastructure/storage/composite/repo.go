package composite

import (
	"context"
	"errors"

	"finscope/internal/application/port"
)

// Repo writes to every mirror. One failing mirror does not stop the others.
type Repo struct {
	repos []port.PriceMirror
}

func New(repos ...port.PriceMirror) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.PriceMirror, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) UpsertLatest(ctx context.Context, prices []port.LatestPrice) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.UpsertLatest(ctx, prices); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ port.PriceMirror = (*Repo)(nil)
