package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// DefaultAccountsPath is the on-disk location of the account database.
const DefaultAccountsPath = "data/accounts.json"

var (
	// ErrNoAccounts indicates the account store has never been written.
	ErrNoAccounts = errors.New("account store does not exist")
	// ErrAccountExists indicates a duplicate account name.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound indicates an unknown account name.
	ErrAccountNotFound = errors.New("account not found")
)

// Account is one persisted account record. Password holds a bcrypt hash.
type Account struct {
	Password  string    `json:"password"`
	Admin     bool      `json:"admin,omitempty"`
	Room      RoomID    `json:"room,omitempty"`
	Inventory []string  `json:"inventory,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	LastLogin time.Time `json:"last_login,omitempty"`
}

// AccountStore persists the full account table.
type AccountStore interface {
	// Load returns every account. It returns ErrNoAccounts when the store
	// has never been written.
	Load(ctx context.Context) (map[string]Account, error)
	// Save replaces the stored table with accounts.
	Save(ctx context.Context, accounts map[string]Account) error
}

// FileAccountStore keeps accounts in a single JSON file.
type FileAccountStore struct {
	path string
}

func NewFileAccountStore(path string) *FileAccountStore {
	return &FileAccountStore{path: path}
}

func (s *FileAccountStore) Load(context.Context) (map[string]Account, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoAccounts
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]Account), nil
	}
	var accounts map[string]Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts file: %w", err)
	}
	if accounts == nil {
		accounts = make(map[string]Account)
	}
	return accounts, nil
}

func (s *FileAccountStore) Save(_ context.Context, accounts map[string]Account) error {
	return writeJSONFile(s.path, "accounts-*.tmp", accounts)
}

// Accounts is the in-memory account table backed by a store. It is not safe
// for concurrent use; exactly one goroutine owns it.
type Accounts struct {
	store   AccountStore
	records map[string]Account
}

// OpenAccounts loads the table from store. A store that does not exist yet
// yields an empty table and ErrNoAccounts so callers can bootstrap it.
func OpenAccounts(ctx context.Context, store AccountStore) (*Accounts, error) {
	records, err := store.Load(ctx)
	if errors.Is(err, ErrNoAccounts) {
		return &Accounts{store: store, records: make(map[string]Account)}, ErrNoAccounts
	}
	if err != nil {
		return nil, err
	}
	return &Accounts{store: store, records: records}, nil
}

func (a *Accounts) Get(name string) (Account, bool) {
	acct, ok := a.records[name]
	return acct, ok
}

func (a *Accounts) Len() int {
	return len(a.records)
}

// Add stores a new account and flushes the table.
func (a *Accounts) Add(ctx context.Context, name string, acct Account) error {
	if _, ok := a.records[name]; ok {
		return ErrAccountExists
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	a.records[name] = acct
	if err := a.Flush(ctx); err != nil {
		delete(a.records, name)
		return err
	}
	return nil
}

// Update applies fn to an existing account and flushes the table.
func (a *Accounts) Update(ctx context.Context, name string, fn func(*Account)) error {
	acct, ok := a.records[name]
	if !ok {
		return ErrAccountNotFound
	}
	prev := acct
	fn(&acct)
	a.records[name] = acct
	if err := a.Flush(ctx); err != nil {
		a.records[name] = prev
		return err
	}
	return nil
}

// Delete removes an account and flushes the table.
func (a *Accounts) Delete(ctx context.Context, name string) error {
	acct, ok := a.records[name]
	if !ok {
		return ErrAccountNotFound
	}
	delete(a.records, name)
	if err := a.Flush(ctx); err != nil {
		a.records[name] = acct
		return err
	}
	return nil
}

// Names lists account names in order.
func (a *Accounts) Names() []string {
	names := make([]string, 0, len(a.records))
	for name := range a.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush writes the table to the store.
func (a *Accounts) Flush(ctx context.Context) error {
	return a.store.Save(ctx, a.records)
}
