package notifier

import (
	"sync"

	"github.com/vitalguard/vitalguard/server/models"
)

// Recorder is an in-memory Notifier for tests.
type Recorder struct {
	mu sync.Mutex

	Sends          []RecordedSend
	ContactNotices []RecordedContactNotice
	// Err, when set, is returned from every call - simulates provider outage.
	Err error
}

type RecordedSend struct {
	UserID  string
	Channel string
	Message string
}

type RecordedContactNotice struct {
	ContactID uint
	Name      string
	Phone     string
	Message   string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(userID, channel, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sends = append(r.Sends, RecordedSend{UserID: userID, Channel: channel, Message: message})
	return r.Err
}

func (r *Recorder) NotifyContact(contact models.EmergencyContact, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ContactNotices = append(r.ContactNotices, RecordedContactNotice{
		ContactID: contact.ID,
		Name:      contact.Name,
		Phone:     contact.Phone,
		Message:   message,
	})
	return r.Err
}

// SendCount returns the number of Send calls so far.
func (r *Recorder) SendCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sends)
}

// ContactNoticeCount returns the number of NotifyContact calls so far.
func (r *Recorder) ContactNoticeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ContactNotices)
}

// ChannelsNotified returns the distinct channels of all sends, in order of
// first use.
func (r *Recorder) ChannelsNotified() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]bool{}
	channels := []string{}
	for _, send := range r.Sends {
		if !seen[send.Channel] {
			seen[send.Channel] = true
			channels = append(channels, send.Channel)
		}
	}

	return channels
}
