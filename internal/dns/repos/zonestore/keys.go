package zonestore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

func itob(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}

func btoi(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// Record keys sort by owner name, then type mnemonic, then id:
//
//	owner 0x00 TYPE 0x00 id(8)
func ownerPrefix(owner string) []byte {
	return append([]byte(owner), 0)
}

func ownerTypePrefix(owner string, t domain.RRType) []byte {
	return append(append(ownerPrefix(owner), t.String()...), 0)
}

func recordKey(r domain.Record) []byte {
	return append(ownerTypePrefix(r.Name, r.Type), itob(r.ID)...)
}

// indexValue locates a record: zone id followed by its key in the zone bucket.
func indexValue(zoneID uint64, key []byte) []byte {
	return append(itob(zoneID), key...)
}

func splitIndexValue(v []byte) (uint64, []byte) {
	if len(v) < 8 {
		return 0, nil
	}
	return btoi(v), bytes.Clone(v[8:])
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getJSON(b *bbolt.Bucket, key []byte, v any) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}
