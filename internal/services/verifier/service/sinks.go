package service

import (
	"context"
	"time"

	"mailsweep/internal/modkit/repokit"
	dom "mailsweep/internal/services/verifier/domain"
	vrepo "mailsweep/internal/services/verifier/repo"
)

// Store reads candidates and writes result batches through the bound repo
type Store struct {
	db      repokit.TxRunner
	binder  repokit.Binder[vrepo.Repo]
	repo    vrepo.Repo
	timeout time.Duration
}

var (
	_ dom.CandidateSource = (*Store)(nil)
	_ dom.ResultSink      = (*Store)(nil)
)

// NewStore binds the repo to db; writeTimeout bounds each batch statement (0 = unbounded)
func NewStore(db repokit.TxRunner, binder repokit.Binder[vrepo.Repo], writeTimeout time.Duration) *Store {
	return &Store{
		db:      db,
		binder:  binder,
		repo:    repokit.MustBind(binder, db),
		timeout: writeTimeout,
	}
}

// Candidates loads the run's input list
func (s *Store) Candidates(ctx context.Context, filter string, limit int) ([]string, error) {
	return s.repo.Candidates(ctx, filter, limit)
}

// WriteResults issues the batch as one statement inside its own transaction
func (s *Store) WriteResults(ctx context.Context, runID string, batch []dom.Outcome) (int64, error) {
	var matched int64
	tx := repokit.WithBeginHooks(s.db, repokit.StatementTimeout(s.timeout), repokit.Tag("mailsweep", runID))
	err := repokit.WithTx(ctx, tx, func(q repokit.Queryer) error {
		n, err := repokit.MustBind(s.binder, q).WriteResults(ctx, runID, batch)
		matched = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}
