// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.Mutex
	ataCache map[solana.PublicKey]solana.PublicKey // mint -> ATA
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return fromPrivateKey(solana.PrivateKey(privateKeyBytes)), nil
}

// Generate создаёт кошелёк со случайным ключом.
func Generate() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return fromPrivateKey(key), nil
}

func fromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
		ataCache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// EncodedPrivateKey returns the base58 form accepted by NewWallet.
func (w *Wallet) EncodedPrivateKey() string {
	return base58.Encode(w.PrivateKey)
}

// ErrDuplicateName is returned when a wallets file names two keys the same.
var ErrDuplicateName = errors.New("duplicate wallet name")

var walletsHeader = []string{"name", "private_key"}

// LoadWallets читает CSV-файл кошельков (name, private_key). Пустой файл с
// одним заголовком допустим; повтор имени и битые строки считаются ошибкой.
func LoadWallets(path string) (map[string]*Wallet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallets file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(walletsHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header", path)
	}

	wallets := make(map[string]*Wallet, len(records)-1)
	for i, record := range records[1:] {
		name := record[0]
		if _, dup := wallets[name]; dup {
			return nil, fmt.Errorf("line %d: %w: %q", i+2, ErrDuplicateName, name)
		}
		w, err := NewWallet(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", i+2, name, err)
		}
		wallets[name] = w
	}
	return wallets, nil
}

// AppendWallet adds w under name, creating the file with owner-only
// permissions. An existing name is refused.
func AppendWallet(path, name string, w *Wallet) error {
	if name == "" {
		return errors.New("wallet name is empty")
	}
	existing, err := LoadWallets(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	default:
		if _, dup := existing[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open wallets file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if existing == nil {
		_ = cw.Write(walletsHeader)
	}
	_ = cw.Write([]string{name, w.EncodedPrivateKey()})
	cw.Flush()
	return cw.Error()
}

// SignInstruction подписывает сообщение инструкции с nonce ключом кошелька.
func (w *Wallet) SignInstruction(ix solana.Instruction, nonce uint64) (solana.Signature, error) {
	msg, err := types.SigningMessage(ix, nonce)
	if err != nil {
		return solana.Signature{}, err
	}
	return w.PrivateKey.Sign(msg)
}

// GetATA возвращает адрес ассоциированного токен-аккаунта (ATA) для заданного токена (mint).
// Если адрес уже был вычислен ранее, возвращается значение из кеша.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ata, ok := w.ataCache[mint]; ok {
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ataCache[mint] = ata
	return ata, nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
