package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tabsplit/tabsplit/internal/models"
)

type entryResponse struct {
	ID         string           `json:"id"`
	ReceiptID  string           `json:"receipt_id"`
	Name       string           `json:"name"`
	Price      float64          `json:"price"`
	Taxable    bool             `json:"taxable"`
	AssignedTo []personResponse `json:"assigned_to"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

type receiptResponse struct {
	ID        string           `json:"id"`
	GroupID   string           `json:"group_id"`
	Name      string           `json:"name"`
	Processed bool             `json:"processed"`
	RawData   string           `json:"raw_data,omitempty"`
	PaidBy    *personResponse  `json:"paid_by"`
	People    []personResponse `json:"people"`
	Entries   []entryResponse  `json:"entries"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

func toEntryResponse(e *models.ReceiptEntry) entryResponse {
	return entryResponse{
		ID:         e.ID,
		ReceiptID:  e.ReceiptID,
		Name:       e.Name,
		Price:      e.Price,
		Taxable:    e.Taxable,
		AssignedTo: toPersonResponses(e.AssignedTo),
		CreatedAt:  formatNanos(e.CreatedAt),
		UpdatedAt:  formatNanos(e.UpdatedAt),
	}
}

func toReceiptResponse(rc *models.Receipt) receiptResponse {
	out := receiptResponse{
		ID:        rc.ID,
		GroupID:   rc.GroupID,
		Name:      rc.Name,
		Processed: rc.Processed,
		RawData:   rc.RawData,
		People:    toPersonResponses(rc.People),
		Entries:   make([]entryResponse, len(rc.Entries)),
		CreatedAt: formatNanos(rc.CreatedAt),
		UpdatedAt: formatNanos(rc.UpdatedAt),
	}
	for i := range rc.Entries {
		out.Entries[i] = toEntryResponse(&rc.Entries[i])
	}
	for _, p := range rc.People {
		if p.ID == rc.PaidByID {
			out.PaidBy = &personResponse{ID: p.ID, Name: p.Name}
			break
		}
	}
	return out
}

type entryRequest struct {
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Taxable    *bool    `json:"taxable"` // defaults to true
	AssignedTo []string `json:"assigned_to"`
}

func (e entryRequest) toInput() models.EntryInput {
	taxable := true
	if e.Taxable != nil {
		taxable = *e.Taxable
	}
	return models.EntryInput{
		Name:       e.Name,
		Price:      e.Price,
		Taxable:    taxable,
		AssignedTo: e.AssignedTo,
	}
}

type createReceiptRequest struct {
	Name      string         `json:"name"`
	Processed bool           `json:"processed"`
	RawData   string         `json:"raw_data"`
	PaidBy    string         `json:"paid_by"`
	People    []string       `json:"people"`
	Entries   []entryRequest `json:"entries"`
}

type updateReceiptRequest struct {
	Name      *string   `json:"name"`
	Processed *bool     `json:"processed"`
	PaidBy    *string   `json:"paid_by"`
	People    *[]string `json:"people"`
}

type updateEntryRequest struct {
	Name       *string   `json:"name"`
	Price      *float64  `json:"price"`
	Taxable    *bool     `json:"taxable"`
	AssignedTo *[]string `json:"assigned_to"`
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := models.ReceiptInput{
		Name:      req.Name,
		Processed: req.Processed,
		RawData:   req.RawData,
		PaidBy:    req.PaidBy,
		People:    req.People,
	}
	for _, e := range req.Entries {
		in.Entries = append(in.Entries, e.toInput())
	}
	receipt, err := s.receipts.Create(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.receipts.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]receiptResponse, len(receipts))
	for i := range receipts {
		out[i] = toReceiptResponse(&receipts[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.receipts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var req updateReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	receipt, err := s.receipts.Update(r.Context(), r.PathValue("id"), models.ReceiptUpdate{
		Name:      req.Name,
		Processed: req.Processed,
		PaidBy:    req.PaidBy,
		People:    req.People,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.receipts.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.receipts.AddEntry(r.Context(), r.PathValue("id"), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.receipts.UpdateEntry(r.Context(), r.PathValue("id"), models.EntryUpdate{
		Name:       req.Name,
		Price:      req.Price,
		Taxable:    req.Taxable,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.receipts.DeleteEntry(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shareResponse struct {
	Person personResponse `json:"person"`
	Amount string         `json:"amount"`
}

type splitResponse struct {
	ReceiptID string          `json:"receipt_id"`
	Total     string          `json:"total"`
	Shares    []shareResponse `json:"shares"`
}

// handleSplitReceipt computes the current cost breakdown on demand; nothing
// is persisted, so it always reflects the latest entries.
func (s *Server) handleSplitReceipt(w http.ResponseWriter, r *http.Request) {
	split, err := s.receipts.ComputeSplit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := splitResponse{
		ReceiptID: split.Receipt.ID,
		Total:     split.Total.String(),
		Shares:    make([]shareResponse, len(split.Shares)),
	}
	for i, share := range split.Shares {
		out.Shares[i] = shareResponse{
			Person: personResponse{ID: share.Person.ID, Name: share.Person.Name},
			Amount: share.Amount.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// maxUploadBytes caps scanned receipt uploads.
const maxUploadBytes = 15 << 20

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.ScansTotal.WithLabelValues("rejected").Inc()
		writeError(w, fmt.Errorf("missing or oversized file upload: %w", models.ErrValidation))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.metrics.ScansTotal.WithLabelValues("rejected").Inc()
		writeError(w, fmt.Errorf("failed to read upload: %w", models.ErrValidation))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	receipt, err := s.receipts.Scan(r.Context(), r.PathValue("id"), data, mimeType)
	if err != nil {
		s.metrics.ScansTotal.WithLabelValues("failed").Inc()
		writeError(w, err)
		return
	}
	s.metrics.ScansTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}
