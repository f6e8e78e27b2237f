package orders

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"agrilink/middleware"
	"agrilink/models"
	"agrilink/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

func receiptSecret() []byte {
	if s := os.Getenv("RECEIPT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("dev_only_receipt_secret")
}

// receiptPayload returns orderID|cropID|timestamp|signature so a pickup can
// be verified offline against the shared secret.
func receiptPayload(order *models.Order) string {
	data := fmt.Sprintf("%s|%s|%d", order.OrderID, order.CropID, time.Now().Unix())
	h := hmac.New(sha256.New, receiptSecret())
	h.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s|%s", data, sig)
}

// GET /api/orders/:id/receipt
// Only a Completed order has a receipt; either party may download it.
func (h *Handler) DownloadReceipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Invalid user", http.StatusUnauthorized)
		return
	}

	order, err := h.svc.store.FindOrderByID(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
		return
	}
	if userID != order.BuyerID && userID != order.FarmerID {
		utils.RespondWithError(w, http.StatusForbidden, "Not your order")
		return
	}
	if order.Status != models.OrderCompleted {
		utils.RespondWithError(w, http.StatusConflict, "Receipt is available once the order is completed")
		return
	}

	qrPNG, err := qrcode.Encode(receiptPayload(order), qrcode.Medium, 256)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Order ID: %s", order.OrderID))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Crop: %s", order.CropName))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Quantity: %d kg", order.Quantity))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Total: %.2f", order.TotalPrice))
	pdf.Ln(8)
	pdf.Cell(0, 10, fmt.Sprintf("Completed: %s", order.UpdatedAt.Format("2006-01-02")))
	pdf.Ln(12)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 40, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+order.OrderID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
