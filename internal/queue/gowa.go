package queue

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/iliyamo/pmb-exam-scheduling/internal/config"
)

// GOWA sends WhatsApp messages through a go-whatsapp-web-multidevice
// gateway (POST /send/message).
type GOWA struct {
    BaseURL  string
    DeviceID string
    User     string
    Password string
    Client   *http.Client
}

// NewGOWA returns nil when no gateway URL is configured.
func NewGOWA(cfg config.QueueConfig) *GOWA {
    if cfg.GOWAURL == "" {
        return nil
    }
    return &GOWA{
        BaseURL:  strings.TrimRight(cfg.GOWAURL, "/"),
        DeviceID: cfg.GOWADeviceID,
        User:     cfg.GOWAUser,
        Password: cfg.GOWAPassword,
        Client:   &http.Client{Timeout: 15 * time.Second},
    }
}

type gowaReply struct {
    Code    string `json:"code"`
    Message string `json:"message"`
}

// Notify implements Notifier.  The gateway must answer 2xx with code
// SUCCESS.
func (g *GOWA) Notify(ctx context.Context, phone, message string) error {
    body, err := json.Marshal(map[string]string{"phone": WhatsAppJID(phone), "message": message})
    if err != nil {
        return err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/send/message", bytes.NewReader(body))
    if err != nil {
        return err
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Accept", "application/json")
    if g.User != "" && g.Password != "" {
        req.SetBasicAuth(g.User, g.Password)
    }
    if g.DeviceID != "" {
        req.Header.Set("X-Device-Id", g.DeviceID)
    }

    client := g.Client
    if client == nil {
        client = http.DefaultClient
    }
    resp, err := client.Do(req)
    if err != nil {
        return fmt.Errorf("gowa: send: %w", err)
    }
    defer resp.Body.Close()
    raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        return fmt.Errorf("gowa: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
    }
    var reply gowaReply
    if err := json.Unmarshal(raw, &reply); err != nil || reply.Code != "SUCCESS" {
        return fmt.Errorf("gowa: rejected: %s", strings.TrimSpace(string(raw)))
    }
    return nil
}

// WhatsAppJID strips non-digits, rewrites the local 0 prefix to 62 and
// appends the WhatsApp user suffix.
func WhatsAppJID(phone string) string {
    var b strings.Builder
    for _, r := range phone {
        if r >= '0' && r <= '9' {
            b.WriteRune(r)
        }
    }
    digits := b.String()
    if strings.HasPrefix(digits, "0") {
        digits = "62" + digits[1:]
    }
    return digits + "@s.whatsapp.net"
}

// ScheduleMessage renders the confirmation text sent to the applicant.
func ScheduleMessage(ev ScheduleSelectedEvent) string {
    var b strings.Builder
    b.WriteString("*PMB Pascasarjana - Jadwal Ujian*\n\n")
    fmt.Fprintf(&b, "Yth. *%s*,\n\n", ev.FullName)
    if ev.Moved() {
        b.WriteString("Jadwal ujian Anda telah diubah:\n")
    } else {
        b.WriteString("Jadwal ujian Anda telah dipilih:\n")
    }
    fmt.Fprintf(&b, "Nomor Pendaftaran: *%s*\n", ev.RegistrationNumber)
    fmt.Fprintf(&b, "Tanggal: *%s*\n", ev.Date)
    fmt.Fprintf(&b, "Sesi: *%s* (%s - %s)\n", ev.SessionName, shortClock(ev.StartsAt), shortClock(ev.EndsAt))
    fmt.Fprintf(&b, "Ruang: *%s* %s\n\n", ev.RoomCode, ev.RoomName)
    b.WriteString("Silakan login untuk mencetak kartu ujian.")
    return b.String()
}

// shortClock turns "08:00:00" into "08:00".
func shortClock(s string) string {
    if len(s) == 8 && s[5] == ':' {
        return s[:5]
    }
    return s
}
