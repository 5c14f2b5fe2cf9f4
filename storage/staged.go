package storage

// Staged buffers writes over a base Database so a group of mutations can be
// committed together or discarded. Reads see the buffered writes first, then
// fall through to the base.
type Staged struct {
	base    Database
	pending map[string][]byte
}

// NewStaged wraps the base database in a staging layer.
func NewStaged(base Database) *Staged {
	return &Staged{
		base:    base,
		pending: make(map[string][]byte),
	}
}

func (s *Staged) Put(key []byte, value []byte) error {
	s.pending[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *Staged) Get(key []byte) ([]byte, error) {
	if value, ok := s.pending[string(key)]; ok {
		return value, nil
	}
	return s.base.Get(key)
}

// Commit flushes the buffered writes to the base database and resets the
// buffer. On a flush failure the remaining writes stay buffered.
func (s *Staged) Commit() error {
	for key, value := range s.pending {
		if err := s.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	s.pending = make(map[string][]byte)
	return nil
}

// Discard drops every buffered write.
func (s *Staged) Discard() {
	s.pending = make(map[string][]byte)
}

// Close satisfies the Database interface; the base stays open.
func (s *Staged) Close() {}
