package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeRelay accepts one SMTP session and reports the DATA section it received.
func fakeRelay(t *testing.T) (host string, port int, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { conn.Write([]byte(s + "\r\n")) }

		reply("220 localhost ESMTP")
		var body strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if inData {
				if line == "." {
					inData = false
					out <- body.String()
					reply("250 queued")
					continue
				}
				body.WriteString(line + "\n")
				continue
			}
			switch cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0]); cmd {
			case "EHLO", "HELO":
				reply("250 localhost")
			case "MAIL", "RCPT":
				reply("250 ok")
			case "DATA":
				inData = true
				reply("354 go ahead")
			case "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, out
}

func TestSMTPMailer_SendCode(t *testing.T) {
	host, port, data := fakeRelay(t)
	m := NewSMTPMailer(SMTPConfig{Host: host, Port: port, From: "noreply@echarter.test"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.SendCode(ctx, "driver@fleet.io", "482913"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}

	select {
	case got := <-data:
		for _, want := range []string{
			"To: driver@fleet.io",
			"Subject: Password reset code",
			"Content-Type: text/html",
			"482913",
			"It expires in 5 minutes.",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("message missing %q", want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay never received DATA")
	}
}

func TestSMTPMailer_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "x@y.z"})
	if err := m.SendCode(context.Background(), "a@x.com", "123456"); err == nil {
		t.Fatal("expected dial error")
	} else if !strings.Contains(err.Error(), "127.0.0.1:"+strconv.Itoa(port)) {
		t.Errorf("error should name the relay address: %v", err)
	}
}

func TestSMTPMailer_RenderQuotesTTL(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{CodeTTL: 15 * time.Minute})
	body, err := m.render("<b>")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "15 minutes") {
		t.Errorf("body should quote the TTL: %s", body)
	}
	if strings.Contains(body, "<b><b>") || !strings.Contains(body, "&lt;b&gt;") {
		t.Errorf("code should be HTML-escaped: %s", body)
	}
}

func TestLogNotifier_NeverFails(t *testing.T) {
	if err := (LogNotifier{Logger: discardLogger()}).SendCode(context.Background(), "a@x.com", "123456"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
}
