package badger

import (
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/shuttle/storage"
)

// Key layout: rec:<collection>:<16 id bytes>
const (
	recordPrefix   = "rec:"
	nameSeparator  = ':'
	nameTerminator = nameSeparator + 1
)

// validateCollectionName rejects names that would break the key layout.
func validateCollectionName(name string) error {
	if name == "" || strings.IndexByte(name, nameSeparator) >= 0 {
		return storage.ErrInvalidCollection
	}
	return nil
}

// makeCollectionPrefix generates the key prefix shared by every record of a collection.
// Format: rec:name:
func makeCollectionPrefix(name string) []byte {
	buf := make([]byte, 0, len(recordPrefix)+len(name)+1)
	buf = append(buf, recordPrefix...)
	buf = append(buf, name...)
	return append(buf, nameSeparator)
}

// makeRecordKey generates a key for a record within a collection.
// UUIDv7 identifiers sort by creation time, so key order follows insertion order.
func makeRecordKey(prefix []byte, id uuid.UUID) []byte {
	buf := make([]byte, 0, len(prefix)+len(id))
	buf = append(buf, prefix...)
	return append(buf, id[:]...)
}

// collectionNameFromKey extracts the collection name from a record key.
func collectionNameFromKey(key []byte) (string, bool) {
	rest := strings.TrimPrefix(string(key), recordPrefix)
	if len(rest) == len(key) {
		return "", false
	}
	i := strings.IndexByte(rest, nameSeparator)
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// skipCollectionKey returns a key that sorts after every record of the named collection.
func skipCollectionKey(name string) []byte {
	buf := make([]byte, 0, len(recordPrefix)+len(name)+1)
	buf = append(buf, recordPrefix...)
	buf = append(buf, name...)
	return append(buf, nameTerminator)
}
