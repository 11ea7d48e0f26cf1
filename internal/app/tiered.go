package app

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"quizhub-service/internal/docstore"
)

// query reads from the remote store and mirrors the result into the offline
// tier. When the remote read fails the offline tier answers instead.
// Identical concurrent queries share one remote round trip unless a write to
// the collection lands between them.
func (s *QuizStore) query(ctx context.Context, op string, q docstore.Query) ([]docstore.Snapshot, error) {
	gen := s.generation(q.Collection)
	key := "q:" + strconv.FormatUint(gen, 10) + ":" + q.Key()
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		snaps, err := s.remote.Query(ctx, q)
		if err == nil {
			s.mirrorIfCurrent(q.Collection, gen, func() {
				s.mirrorQuery(ctx, q, snaps)
			})
			return snaps, nil
		}

		s.log.Warn("remote read failed, using offline cache",
			zap.String("op", op), zap.String("collection", q.Collection), zap.Error(err))
		if s.offline == nil {
			return nil, err
		}
		cached, cerr := s.offline.Query(ctx, q)
		if cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return cached, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]docstore.Snapshot), nil
}

// get is the single-document version of query.
func (s *QuizStore) get(ctx context.Context, op string, ref docstore.Ref) (docstore.Snapshot, error) {
	gen := s.generation(ref.Collection)
	key := "g:" + strconv.FormatUint(gen, 10) + ":" + ref.Path()
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		snap, err := s.remote.Get(ctx, ref)
		if err == nil {
			s.mirrorIfCurrent(ref.Collection, gen, func() {
				s.mirrorSet(ctx, ref, snap.Data, false)
			})
			return snap, nil
		}
		if errors.Is(err, docstore.ErrNotFound) {
			s.mirrorIfCurrent(ref.Collection, gen, func() {
				s.mirrorDelete(ctx, ref)
			})
			return nil, err
		}

		s.log.Warn("remote read failed, using offline cache",
			zap.String("op", op), zap.String("path", ref.Path()), zap.Error(err))
		if s.offline == nil {
			return nil, err
		}
		cached, cerr := s.offline.Get(ctx, ref)
		if cerr != nil {
			if errors.Is(cerr, docstore.ErrNotFound) {
				return nil, cerr
			}
			return nil, errors.Join(err, cerr)
		}
		return cached, nil
	})
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return result.(docstore.Snapshot), nil
}

func (s *QuizStore) set(ctx context.Context, ref docstore.Ref, data docstore.Doc, merge bool) error {
	if err := s.remote.Set(ctx, ref, data, merge); err != nil {
		return err
	}
	s.written(ref.Collection, func() {
		s.mirrorSet(ctx, ref, data, merge)
	})
	return nil
}

func (s *QuizStore) update(ctx context.Context, ref docstore.Ref, fields docstore.Doc) error {
	if err := s.remote.Update(ctx, ref, fields); err != nil {
		return err
	}
	s.written(ref.Collection, func() {
		if s.offline == nil {
			return
		}
		if err := s.offline.Update(ctx, ref, fields); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			s.log.Debug("offline mirror update failed", zap.String("path", ref.Path()), zap.Error(err))
		}
	})
	return nil
}

func (s *QuizStore) delete(ctx context.Context, ref docstore.Ref) error {
	if err := s.remote.Delete(ctx, ref); err != nil {
		return err
	}
	s.written(ref.Collection, func() {
		s.mirrorDelete(ctx, ref)
	})
	return nil
}

// generation is the number of writes that have landed in collection.
func (s *QuizStore) generation(collection string) uint64 {
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	return s.gens[collection]
}

// written bumps the collection generation and mirrors the write while holding
// the mirror lock, so a read that started earlier cannot overwrite it.
func (s *QuizStore) written(collection string, mirror func()) {
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	s.gens[collection]++
	mirror()
}

// mirrorIfCurrent mirrors a remote read unless the collection was written
// after the read began.
func (s *QuizStore) mirrorIfCurrent(collection string, gen uint64, mirror func()) {
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	if s.gens[collection] != gen {
		s.log.Debug("skipping offline mirror of stale read", zap.String("collection", collection))
		return
	}
	mirror()
}

// mirrorQuery copies a fresh remote result into the offline tier and drops
// offline documents the remote no longer returns for the same query.
// Callers hold the mirror lock.
func (s *QuizStore) mirrorQuery(ctx context.Context, q docstore.Query, snaps []docstore.Snapshot) {
	if s.offline == nil {
		return
	}
	fresh := make(map[string]struct{}, len(snaps))
	for _, snap := range snaps {
		fresh[snap.ID] = struct{}{}
		s.mirrorSet(ctx, docstore.Ref{Collection: q.Collection, ID: snap.ID}, snap.Data, false)
	}
	if q.Limit > 0 {
		return
	}
	cached, err := s.offline.Query(ctx, q)
	if err != nil {
		return
	}
	for _, snap := range cached {
		if _, ok := fresh[snap.ID]; !ok {
			s.mirrorDelete(ctx, docstore.Ref{Collection: q.Collection, ID: snap.ID})
		}
	}
}

func (s *QuizStore) mirrorSet(ctx context.Context, ref docstore.Ref, data docstore.Doc, merge bool) {
	if s.offline == nil {
		return
	}
	if err := s.offline.Set(ctx, ref, data, merge); err != nil {
		s.log.Debug("offline mirror write failed", zap.String("path", ref.Path()), zap.Error(err))
	}
}

func (s *QuizStore) mirrorDelete(ctx context.Context, ref docstore.Ref) {
	if s.offline == nil {
		return
	}
	if err := s.offline.Delete(ctx, ref); err != nil {
		s.log.Debug("offline mirror delete failed", zap.String("path", ref.Path()), zap.Error(err))
	}
}
