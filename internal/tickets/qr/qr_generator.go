package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-registration/internal/models"
)

// ticketPayload is what gets encrypted into the QR image. It carries
// just enough to verify a ticket at the door.
type ticketPayload struct {
	RegistrationID int64  `json:"registration_id"`
	EventID        int64  `json:"event_id"`
	UserID         int64  `json:"user_id"`
	TicketNumber   string `json:"ticket_number"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// TicketQR renders the registration's ticket as an encrypted QR PNG.
func (g *Generator) TicketQR(reg models.Registration) ([]byte, error) {
	data, err := json.Marshal(ticketPayload{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		TicketNumber:   reg.TicketNumber,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// Decode reverses TicketQR's encryption given the base64 payload read
// from a scanned code.
func (g *Generator) Decode(encoded string) (int64, string, error) {
	raw, err := decryptAES(encoded, g.secret)
	if err != nil {
		return 0, "", err
	}

	var payload ticketPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, "", err
	}
	return payload.RegistrationID, payload.TicketNumber, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])

	return data, nil
}
