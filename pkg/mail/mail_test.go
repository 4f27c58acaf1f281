package mail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
	"github.com/telekom/autofix-notifier/pkg/system"
)

// startTestSMTPServer starts a minimal SMTP server on a random port that
// accepts one message and then returns. The DATA section is made available
// through the returned function once the session has ended.
func startTestSMTPServer(t *testing.T) (host string, port int, data func() string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		received strings.Builder
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 localhost Test SMTP Service Ready\r\n")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				break
			}
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "EHLO") || strings.HasPrefix(line, "HELO"):
				fmt.Fprintf(conn, "250-localhost Hello\r\n250 OK\r\n")
			case strings.HasPrefix(line, "DATA"):
				fmt.Fprintf(conn, "354 End data with <CR><LF>.<CR><LF>\r\n")
				for {
					dline, derr := r.ReadString('\n')
					if derr != nil || strings.TrimSpace(dline) == "." {
						break
					}
					mu.Lock()
					received.WriteString(dline)
					mu.Unlock()
				}
				fmt.Fprintf(conn, "250 OK: queued as 12345\r\n")
			case strings.HasPrefix(line, "QUIT"):
				fmt.Fprintf(conn, "221 Bye\r\n")
				return
			default:
				fmt.Fprintf(conn, "250 OK\r\n")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	stop = func() {
		ln.Close()
		wg.Wait()
	}
	data = func() string {
		wg.Wait()
		mu.Lock()
		defer mu.Unlock()
		return received.String()
	}
	return "127.0.0.1", addr.Port, data, stop
}

func TestSMTPTransport_Deliver_HappyPath(t *testing.T) {
	host, port, data, stop := startTestSMTPServer(t)
	defer stop()

	transport := NewSMTPTransport(config.SMTP{Host: host, Port: port}, system.NewTestLogger())
	before := testutil.ToFloat64(metrics.MailSendSuccess.WithLabelValues(TransportSMTP))

	err := transport.Deliver(context.Background(), Envelope{
		From:              "noreply@example.com",
		To:                []string{"owner@example.com"},
		Subject:           "AutoFix applied",
		MailBodyAsString:  "<p>Hello ${NAME}</p>",
		PlaceholderValues: map[string]string{"NAME": "Alice"},
	})
	require.NoError(t, err)

	body := data()
	assert.Contains(t, body, "Subject: AutoFix applied")
	assert.Contains(t, body, "Hello Alice")
	assert.NotContains(t, body, "${NAME}")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MailSendSuccess.WithLabelValues(TransportSMTP)))
}

func TestSMTPTransport_Deliver_NoServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	transport := NewSMTPTransport(config.SMTP{Host: "127.0.0.1", Port: port, RetryCount: 1, RetryBackoffMs: 1}, system.NewTestLogger())
	err = transport.Deliver(context.Background(), Envelope{To: []string{"owner@example.com"}, From: "noreply@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
}

func TestSMTPTransport_Deliver_NoReceivers(t *testing.T) {
	transport := NewSMTPTransport(config.SMTP{Host: "localhost", Port: 1025}, system.NewTestLogger())
	err := transport.Deliver(context.Background(), Envelope{})
	assert.Error(t, err)
}

func TestSMTPTransport_Defaults(t *testing.T) {
	transport := NewSMTPTransport(config.SMTP{Host: "smtp.example.com", Port: 25, RetryCount: -3}, system.NewTestLogger())
	assert.Equal(t, "smtp.example.com", transport.dialer.Host)
	assert.Equal(t, 0, transport.retryCount)
	assert.Equal(t, 100, transport.retryBackoffMs)
	assert.Equal(t, "Pacman AutoFix", transport.senderName)
	assert.Equal(t, TransportSMTP, transport.Name())
}

func TestNewTransport(t *testing.T) {
	props := config.NewProperties(nil)
	log := system.NewTestLogger()

	tr, err := NewTransport(config.Mail{}, props, log)
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, tr.Name())

	tr, err = NewTransport(config.Mail{Delivery: config.DeliverySMTP, SMTP: config.SMTP{Host: "smtp", Port: 25}}, props, log)
	require.NoError(t, err)
	assert.Equal(t, TransportSMTP, tr.Name())

	_, err = NewTransport(config.Mail{Delivery: config.DeliverySMTP}, props, log)
	assert.Error(t, err)

	_, err = NewTransport(config.Mail{Delivery: "pigeon"}, props, log)
	assert.Error(t, err)
}
