package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/models"
	"frontdesk/internal/service"
)

func roomID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid room id %q", domain.ErrNotFound, r.PathValue("id"))
	}
	return id, nil
}

func invoiceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid invoice id %q", domain.ErrNotFound, r.PathValue("id"))
	}
	return id, nil
}

func decode(r *http.Request, into interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.RoomFilter{
		Status: models.RoomStatus(q.Get("status")),
		Type:   q.Get("type"),
		Block:  q.Get("block"),
	}
	writeOK(w, s.desk.GetRooms(filter, q.Get("sort")))
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	room, err := s.desk.GetRoomByID(id)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, room)
}

func (s *HTTPServer) handleActiveReservation(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	res := s.desk.GetActiveReservationForRoom(id)
	if res == nil {
		writeErr(w, fmt.Errorf("%w: no active reservation for room %d", domain.ErrNotFound, id), nil)
		return
	}
	writeOK(w, res)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.desk.GetReservations())
}

type reserveRequest struct {
	RoomID        int64     `json:"room_id"`
	GuestName     string    `json:"guest_name"`
	Contact       string    `json:"contact"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Adults        int       `json:"adults"`
	Children      int       `json:"children"`
	PaymentMethod string    `json:"payment_method"`
	Requests      string    `json:"requests"`
	Confirmed     bool      `json:"confirmed"`
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}

	res := models.Reservation{
		RoomID:        req.RoomID,
		GuestName:     req.GuestName,
		Contact:       req.Contact,
		CheckIn:       req.CheckIn,
		CheckOut:      req.CheckOut,
		Adults:        req.Adults,
		Children:      req.Children,
		PaymentMethod: req.PaymentMethod,
		Requests:      req.Requests,
	}
	if req.Confirmed {
		res.Status = models.ReservationConfirmed
	}

	created, err := s.desk.Reserve(r.Context(), res)
	if err != nil {
		writeErr(w, err, created)
		return
	}
	writeOK(w, created)
}

type checkInRequest struct {
	GuestName string `json:"guest_name"`
	Contact   string `json:"contact"`
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	var req checkInRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	if err := s.desk.CheckInRoom(r.Context(), id, req.GuestName, req.Contact); err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, nil)
}

func (s *HTTPServer) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	if err := s.desk.CheckOut(r.Context(), id); err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, nil)
}

type roomStatusRequest struct {
	Status models.RoomStatus `json:"status"`
}

func (s *HTTPServer) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	var req roomStatusRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	if err := s.desk.UpdateRoomStatus(r.Context(), id, req.Status); err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, nil)
}

func (s *HTTPServer) handleReservationCheckIn(w http.ResponseWriter, r *http.Request) {
	if err := s.desk.CheckInReservation(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, nil)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.desk.CancelReservation(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, nil)
}

type updateReservationRequest struct {
	reserveRequest
	ExpectedVersion int64 `json:"expected_version"`
}

func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	var req updateReservationRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}

	res := models.Reservation{
		ID:            r.PathValue("id"),
		RoomID:        req.RoomID,
		GuestName:     req.GuestName,
		Contact:       req.Contact,
		CheckIn:       req.CheckIn,
		CheckOut:      req.CheckOut,
		Adults:        req.Adults,
		Children:      req.Children,
		PaymentMethod: req.PaymentMethod,
		Requests:      req.Requests,
	}
	if req.Confirmed {
		res.Status = models.ReservationConfirmed
	}

	if err := s.desk.UpdateReservation(r.Context(), res, req.ExpectedVersion); err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, nil)
}

func (s *HTTPServer) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.invoices.ListInvoices())
}

type createInvoiceRequest struct {
	GuestName string    `json:"guest_name"`
	RoomID    int64     `json:"room_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	RoomRate  float64   `json:"room_rate"`
}

func (s *HTTPServer) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	inv, err := s.invoices.CreateInvoice(r.Context(), models.Invoice{
		GuestName: req.GuestName,
		RoomID:    req.RoomID,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		RoomRate:  req.RoomRate,
	})
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	writeOK(w, inv)
}

func (s *HTTPServer) handleAddService(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	var item models.ServiceItem
	if err := decode(r, &item); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	inv, err := s.invoices.AddServiceItem(r.Context(), id, item)
	if err != nil {
		writeErr(w, err, inv)
		return
	}
	writeOK(w, inv)
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

func (s *HTTPServer) handleSetRate(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	var req rateRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	inv, err := s.invoices.SetRoomRate(r.Context(), id, req.Rate)
	if err != nil {
		writeErr(w, err, inv)
		return
	}
	writeOK(w, inv)
}

type invoiceStatusRequest struct {
	Status models.InvoiceStatus `json:"status"`
}

func (s *HTTPServer) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceID(r)
	if err != nil {
		writeErr(w, err, nil)
		return
	}
	var req invoiceStatusRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	inv, err := s.invoices.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeErr(w, err, inv)
		return
	}
	writeOK(w, inv)
}

func (s *HTTPServer) handleGetRevenue(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]float64{"revenue": s.invoices.Revenue()})
}

type revenueRequest struct {
	Amount float64 `json:"amount"`
	Reset  bool    `json:"reset"`
}

func (s *HTTPServer) handleUpdateRevenue(w http.ResponseWriter, r *http.Request) {
	var req revenueRequest
	if err := decode(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid payload"})
		return
	}
	total := s.invoices.UpdateRevenueStats(req.Amount, req.Reset)
	writeOK(w, map[string]float64{"revenue": total})
}
