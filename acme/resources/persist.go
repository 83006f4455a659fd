package resources

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/keys"
)

// savedAccount is the JSON format accounts are persisted in: the account
// URL, the contacts, and the private key as base64 DER with a type tag.
type savedAccount struct {
	ID         string   `json:"id"`
	Contact    []string `json:"contact,omitempty"`
	KeyType    string   `json:"keyType"`
	PrivateKey string   `json:"privateKey"`
}

// SaveAccount writes the account's URL, contacts and private key to the
// given file path so a later session can resume with RestoreAccount. The
// file contains the unencrypted private key and is written with 0600
// permissions.
func SaveAccount(path string, account *Account) error {
	keyBytes, keyType, err := keys.MarshalSigner(account.Login().Signer())
	if err != nil {
		return err
	}

	frozen, err := json.MarshalIndent(savedAccount{
		ID:         account.Location(),
		Contact:    account.Contact,
		KeyType:    keyType,
		PrivateKey: base64.StdEncoding.EncodeToString(keyBytes),
	}, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, frozen, 0600)
}

// RestoreAccount reads an account previously written by SaveAccount and
// binds it to the given session.
func RestoreAccount(path string, session *client.Session) (*Account, error) {
	frozen, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var saved savedAccount
	if err := json.Unmarshal(frozen, &saved); err != nil {
		return nil, fmt.Errorf("invalid account file %q: %s", path, err)
	}
	if saved.ID == "" {
		return nil, fmt.Errorf("account file %q has no account URL", path)
	}

	keyBytes, err := base64.StdEncoding.DecodeString(saved.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("account file %q has an invalid private key: %s", path, err)
	}
	signer, err := keys.UnmarshalSigner(keyBytes, saved.KeyType)
	if err != nil {
		return nil, err
	}

	account := NewAccount(session.NewLogin(saved.ID, signer))
	account.Contact = saved.Contact
	return account, nil
}
