package repository

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"mint-dashboard/db"
	"mint-dashboard/models"

	"github.com/ethereum/go-ethereum/common"
)

const activityPrefix = "activity:"

// It abstracts the journal storage from the synchronizer
type ActivityRepositoryInterface interface {
	Append(entry *models.Activity) error
	List(address common.Address) ([]*models.Activity, error)
	Purge(address common.Address) (int, error)
}

// ActivityRepository implements the ActivityRepositoryInterface using LevelDB as the storage backend
type ActivityRepository struct {
	db  *db.LevelDB
	seq atomic.Uint64
}

// NewActivityRepository creates and returns a new ActivityRepository instance
func NewActivityRepository(db *db.LevelDB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append stores an entry under the address prefix, ordered by creation time
func (r *ActivityRepository) Append(entry *models.Activity) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%020d:%010d", addressPrefix(entry.Address), entry.CreatedAt.UnixNano(), r.seq.Add(1))
	return r.db.Put([]byte(key), data)
}

// List returns the address' entries, oldest first
func (r *ActivityRepository) List(address common.Address) ([]*models.Activity, error) {
	iter := r.db.NewPrefixIterator([]byte(addressPrefix(address)))
	defer iter.Release()

	entries := []*models.Activity{}
	for iter.Next() {
		var entry models.Activity
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, iter.Error()
}

// Purge drops every entry of the address; called when its session ends
func (r *ActivityRepository) Purge(address common.Address) (int, error) {
	return r.db.DeletePrefix([]byte(addressPrefix(address)))
}

func addressPrefix(address common.Address) string {
	return activityPrefix + address.Hex() + ":"
}
