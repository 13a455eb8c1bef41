package mocknative

import (
	"encoding/json"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var mailboxEntries = map[string]entry{
	"bao_mailbox_send":     {"lss", withVault(mailboxSend)},
	"bao_mailbox_receive":  {"lsll", withVault(mailboxReceive)},
	"bao_mailbox_download": {"lssis", withVault(mailboxDownload)},
}

const messageExt = ".msg"

type message struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
	FileInfo    *file    `json:"fileInfo,omitempty"`
}

// mailboxSend uploads the attachments under dir/<id>/ and the message itself
// as dir/<id>.msg.
func mailboxSend(_ *Native, v *vault, a argv) reply {
	dir := cleanName(a.s(1))
	var m message
	if err := json.Unmarshal([]byte(a.s(2)), &m); err != nil {
		return fail(errorf(ParseError, err, "cannot parse message"))
	}
	id := uuid.NewString()
	names := make([]string, 0, len(m.Attachments))
	for i, local := range m.Attachments {
		data, err := os.ReadFile(local)
		if err != nil {
			return fail(errorf(FileError, err, "cannot read attachment %s", local))
		}
		name := path.Join(dir, id, strconv.Itoa(i))
		if _, err := v.put(name, data, nil); err != nil {
			return fail(err)
		}
		names = append(names, name)
	}
	m.Attachments = names
	m.FileInfo = nil
	body, err := json.Marshal(m)
	if err != nil {
		return fail(errorf(EncodeError, err, "cannot encode message"))
	}
	if _, err := v.put(path.Join(dir, id+messageExt), body, nil); err != nil {
		return fail(err)
	}
	return none()
}

func mailboxReceive(_ *Native, v *vault, a argv) reply {
	dir := cleanName(a.s(1))
	since, fromID := a.l(2), a.l(3)
	out := []message{}
	for name := range v.state.versions {
		if parentDir(name) != dir || !strings.HasSuffix(name, messageExt) {
			continue
		}
		f, _ := v.state.latest(name)
		if (since > 0 && f.ModTime.Unix() < since) || f.ID <= fromID {
			continue
		}
		body, err := v.get(f)
		if err != nil {
			return fail(err)
		}
		var m message
		if err := json.Unmarshal(body, &m); err != nil {
			return fail(errorf(ParseError, err, "cannot parse message %s", name))
		}
		if m.Attachments == nil {
			m.Attachments = []string{}
		}
		m.FileInfo = &f
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileInfo.ID < out[j].FileInfo.ID })
	return value(out)
}

func mailboxDownload(_ *Native, v *vault, a argv) reply {
	var m message
	if err := json.Unmarshal([]byte(a.s(2)), &m); err != nil {
		return fail(errorf(ParseError, err, "cannot parse message"))
	}
	idx, dest := a.i(3), a.s(4)
	if idx < 0 || idx >= len(m.Attachments) {
		return fail(errorf(GenericError, nil, "attachment %d out of range, message has %d", idx, len(m.Attachments)))
	}
	name := m.Attachments[idx]
	f, ok := v.state.latest(name)
	if !ok {
		return fail(errorf(FileError, os.ErrNotExist, "cannot find attachment %s", name))
	}
	data, err := v.get(f)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return fail(errorf(FileError, err, "cannot write %s", dest))
	}
	return none()
}
