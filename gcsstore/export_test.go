package gcsstore

var (
	NormalizePrefix = normalizePrefix
	ClientOptions   = clientOptions
	MapError        = mapError
)

func NewForTest(prefix string) *Store {
	return &Store{prefix: normalizePrefix(prefix)}
}

func (s *Store) ObjectName(key string) string {
	return s.objectName(key)
}

func (s *Store) KeyOf(name string) (string, bool) {
	return s.keyOf(name)
}
