// Package authutil holds the auth-policy helpers an application wires
// into its USERAUTH callback. Deciding who is allowed in is explicitly
// out of scope for the protocol core itself, but the ambient stack for
// doing so (system-shadow verification via passlib, file-backed bcrypt
// verification with an anti-enumeration dummy record) is carried
// forward from the same style used elsewhere in this module.
package authutil

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"io/ioutil"
	"os/user"
	"runtime"
	"strings"

	"github.com/jameskeane/bcrypt"
	passlib "gopkg.in/hlandau/passlib.v1"
)

// Ctx carries injectable I/O so tests can avoid touching the real
// filesystem or user database.
type Ctx struct {
	Reader     func(string) ([]byte, error)
	UserLookup func(string) (*user.User, error)
}

// NewCtx builds a Ctx wired to the real filesystem and OS user database.
func NewCtx() *Ctx {
	return &Ctx{Reader: ioutil.ReadFile, UserLookup: user.Lookup}
}

func (c *Ctx) reader() func(string) ([]byte, error) {
	if c.Reader == nil {
		return ioutil.ReadFile
	}
	return c.Reader
}

func (c *Ctx) lookup() func(string) (*user.User, error) {
	if c.UserLookup == nil {
		return user.Lookup
	}
	return c.UserLookup
}

// VerifySystemShadow checks a password against the platform's shadow
// (Linux) or master.passwd (FreeBSD) file via passlib. Expiry fields are
// not inspected.
func VerifySystemShadow(ctx *Ctx, shadowPath, username, password string) (bool, error) {
	passlib.UseDefaults(passlib.Defaults20180601)

	data, err := ctx.reader()(shadowPath)
	if err != nil {
		return false, err
	}

	var hash string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Split(line, ":")
		if len(fields) >= 2 && fields[0] == username {
			hash = fields[1]
			break
		}
	}
	if hash == "" {
		return false, errors.New("no shadow entry for user")
	}
	if err := passlib.VerifyNoUpgrade(password, hash); err != nil {
		return false, err
	}
	return true, nil
}

// On every lookup miss the secret is hashed with dummyBcryptSalt (the
// salt of dummyBcryptHash) and the result discarded, so that a failed
// auth for a nonexistent user does the same bcrypt work (and takes
// roughly the same time) as a failed auth for a real one.
const dummyBcryptHash = "$2a$12$l0coBlRDNEJeQVl6GdEPbUC/xmuOANvqgmrMVum6S4i.EXPgnTXy6"
const dummyBcryptSalt = "$2a$12$l0coBlRDNEJeQVl6GdEPbU"

// VerifyBcryptFile checks username/secret against a CSV file of
// username:salt:bcrypthash records.
func VerifyBcryptFile(ctx *Ctx, path, username, secret string) bool {
	b, err := ctx.reader()(path)
	if err != nil {
		return false
	}
	defer scrub(b)

	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = ':'
	r.Comment = '#'
	r.FieldsPerRecord = 3

	for {
		record, err := r.Read()
		if err == io.EOF {
			// No matching record: still do the bcrypt work against a
			// dummy hash so a lookup miss costs the same time as a hit,
			// then fail regardless of what the attacker supplied.
			_, _ = bcrypt.Hash(secret, dummyBcryptSalt)
			return false
		}
		if err != nil {
			return false
		}
		if username != record[0] {
			continue
		}
		computed, err := bcrypt.Hash(secret, record[1])
		if err != nil {
			return false
		}
		return computed == record[2]
	}
}

func scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.GC()
}

// UserExists cross-checks that username is a real local account.
func UserExists(ctx *Ctx, username string) bool {
	_, err := ctx.lookup()(username)
	return err == nil
}
