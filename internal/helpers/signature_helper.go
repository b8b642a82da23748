package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Receipt payloads are signed so a scanned QR can be checked against
// tampering without a database round trip.

func GenerateReceiptSignature(paymentID, bookingID, userID uuid.UUID) string {
	secretKey := os.Getenv("JWT_SECRET")
	data := fmt.Sprintf("%s:%s:%s", paymentID.String(), bookingID.String(), userID.String())
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func BuildReceiptQRData(paymentID, bookingID, userID uuid.UUID) string {
	signature := GenerateReceiptSignature(paymentID, bookingID, userID)
	return fmt.Sprintf("payment:%s;booking:%s;signature:%s",
		paymentID.String(), bookingID.String(), signature)
}

func ValidateReceiptQRData(qrData string, paymentID, bookingID, userID uuid.UUID) bool {
	parts := strings.Split(qrData, ";")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "signature:") {
		return false
	}
	signature := strings.TrimPrefix(parts[2], "signature:")
	expected := GenerateReceiptSignature(paymentID, bookingID, userID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
