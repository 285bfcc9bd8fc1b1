package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/tsanzi/ratiba/core"
)

type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	disableOutput    bool

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService writes messages to the standard logger; used in DEV.
func NewConsoleService(conf *core.Config) *consoleService {
	return &consoleService{
		defaultFromEmail: mail.Address{Address: conf.DefaultFromEmail},
		subjPrefix:       "[" + conf.AppName + "] ",
	}
}

// NewConsoleServiceMock records messages without output and sends
// synchronously; used in tests.
func NewConsoleServiceMock(conf *core.Config) *consoleService {
	svc := NewConsoleService(conf)
	svc.disableOutput = true
	return svc
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.disableOutput {
			svc.sendMessage(msg) // run synchronously
		} else {
			go svc.sendMessage(msg)
		}
	}
}

// SentMessages returns every message recorded so far.
func (svc *consoleService) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sent := make([]core.EmailMessage, len(svc.sent))
	copy(sent, svc.sent)
	return sent
}

func (svc *consoleService) sendMessage(msg *core.EmailMessage) {
	if len(msg.To) == 0 || msg.Body == "" {
		return
	}
	if !svc.disableOutput {
		body := new(strings.Builder)
		_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
		_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
		_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
		_, _ = fmt.Fprintf(body, "To: %s\r\n", svc.joinAddresses(msg.To))
		_, _ = fmt.Fprintf(body, "\r\n%s\r\n", msg.Body)
		log.Println(body.String())
	}
	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
}

func (svc *consoleService) joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
