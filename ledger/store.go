package ledger

// Bucket names used by the ledger.
const (
	BucketAccounts = "accounts"
	BucketBalances = "balances"
	BucketNonces   = "nonces"
)

var buckets = []string{BucketAccounts, BucketBalances, BucketNonces}

// Store persists ledger state. Update runs fn in a single read-write
// transaction that commits only if fn returns nil; concurrent Updates are
// serialized.
type Store interface {
	View(fn func(tx Tx) error) error
	Update(fn func(tx Tx) error) error
	Close() error
}

// Tx is a bucketed key/value transaction. Values returned by Get are owned by
// the caller.
type Tx interface {
	Get(bucket string, key []byte) []byte
	Put(bucket string, key, value []byte) error
	ForEach(bucket string, fn func(k, v []byte) error) error
}
