package bao

import (
	"time"

	"github.com/stregato/bao-go/internal/bindings"
)

// Send posts msg to the mailbox kept in dir. Attachments are local files
// uploaded with the message.
func (v *Vault) Send(dir string, msg Message) error {
	if _, err := v.handle(); err != nil {
		return err
	}
	enc, err := checkArg(msg)
	if err != nil {
		return err
	}
	return v.call("bao_mailbox_send", bindings.String(dir), bindings.String(enc)).Err()
}

// Receive returns the messages in dir newer than since and with an id above
// fromID.
func (v *Vault) Receive(dir string, since time.Time, fromID int64) ([]Message, error) {
	var sec int64
	if !since.IsZero() {
		sec = since.Unix()
	}
	return decodeList[Message](v.call("bao_mailbox_receive", bindings.String(dir), bindings.Long(sec), bindings.Long(fromID)))
}

// Download stores attachment number attachment of msg at the local path dest.
func (v *Vault) Download(dir string, msg Message, attachment int, dest string) error {
	if _, err := v.handle(); err != nil {
		return err
	}
	enc, err := checkArg(msg)
	if err != nil {
		return err
	}
	return v.call("bao_mailbox_download", bindings.String(dir), bindings.String(enc), bindings.Int(attachment), bindings.String(dest)).Err()
}
