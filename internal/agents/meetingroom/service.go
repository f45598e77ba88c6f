// ABOUTME: Dictionary-backed meeting room booking service exposed as agent tools
// ABOUTME: Buildings and rooms are static seed data; bookings mutate under a mutex

package meetingroom

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Building is one bookable building.
type Building struct {
	ID     string
	Name   string
	Floors int
}

// Room is one meeting room inside a building.
type Room struct {
	ID       string
	Building string
	Name     string
	Capacity int
}

// Booking is one confirmed or cancelled reservation.
type Booking struct {
	BookingID string
	RoomID    string
	RoomName  string
	Building  string
	UserID    string
	Date      string
	TimeSlot  string
	Title     string
	Attendees int
	Status    string
	CreatedAt string
}

// timeSlots are the bookable hours of a working day.
var timeSlots = []string{
	"09:00-10:00", "10:00-11:00", "11:00-12:00",
	"13:00-14:00", "14:00-15:00", "15:00-16:00",
	"16:00-17:00", "17:00-18:00",
}

// Service holds the booking state. Tool methods return payload maps in the
// tool-result convention: {"status": "success", ...} or
// {"status": "error", "error_message": ...}. Validation failures are
// payloads for the agent to relay, never Go errors.
type Service struct {
	mu        sync.Mutex
	buildings []Building
	rooms     []Room
	bookings  map[string]*Booking
	counter   int
	now       func() time.Time
}

// NewService creates a service seeded with the standard campus data.
func NewService() *Service {
	return &Service{
		buildings: []Building{
			{ID: "A", Name: "A棟 - 總部大樓", Floors: 10},
			{ID: "B", Name: "B棟 - 研發中心", Floors: 8},
			{ID: "C", Name: "C棟 - 會議中心", Floors: 5},
		},
		rooms: []Room{
			{ID: "A-101", Building: "A", Name: "大會議室", Capacity: 20},
			{ID: "A-102", Building: "A", Name: "小會議室A", Capacity: 8},
			{ID: "A-201", Building: "A", Name: "董事會議室", Capacity: 30},
			{ID: "B-101", Building: "B", Name: "研發討論室", Capacity: 10},
			{ID: "B-102", Building: "B", Name: "技術簡報室", Capacity: 15},
			{ID: "C-101", Building: "C", Name: "多功能廳", Capacity: 50},
			{ID: "C-201", Building: "C", Name: "VIP會議室", Capacity: 12},
		},
		bookings: make(map[string]*Booking),
		now:      time.Now,
	}
}

func errorResult(format string, args ...any) map[string]any {
	return map[string]any{
		"status":        "error",
		"error_message": fmt.Sprintf(format, args...),
	}
}

// ListBuildings returns all bookable buildings.
func (s *Service) ListBuildings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	buildings := make([]map[string]any, 0, len(s.buildings))
	for _, b := range s.buildings {
		buildings = append(buildings, map[string]any{
			"id": b.ID, "name": b.Name, "floors": b.Floors,
		})
	}
	return map[string]any{
		"status":    "success",
		"buildings": buildings,
		"message":   fmt.Sprintf("共有 %d 棟大樓可供預約。", len(buildings)),
	}
}

// ListAvailableRooms returns each room of a building with its free and
// booked slots on the given date.
func (s *Service) ListAvailableRooms(buildingID, date string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	buildingID = strings.ToUpper(buildingID)
	building, ok := s.findBuilding(buildingID)
	if !ok {
		return errorResult("找不到大樓 '%s'。請使用 list_buildings 查詢可用大樓。", buildingID)
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return errorResult("日期格式錯誤，請使用 YYYY-MM-DD 格式（例如：2025-12-20）。")
	}
	if date < s.today() {
		return errorResult("無法查詢過去的日期。")
	}

	var rooms []map[string]any
	for _, room := range s.rooms {
		if room.Building != buildingID {
			continue
		}
		var booked []string
		for _, b := range s.bookings {
			if b.RoomID == room.ID && b.Date == date && b.Status == "confirmed" {
				booked = append(booked, b.TimeSlot)
			}
		}
		var available []string
		for _, slot := range timeSlots {
			if !contains(booked, slot) {
				available = append(available, slot)
			}
		}
		rooms = append(rooms, map[string]any{
			"room_id":         room.ID,
			"room_name":       room.Name,
			"capacity":        room.Capacity,
			"available_slots": available,
			"booked_slots":    booked,
		})
	}

	return map[string]any{
		"status":   "success",
		"building": building.Name,
		"date":     date,
		"rooms":    rooms,
		"message":  fmt.Sprintf("%s 在 %s 共有 %d 間會議室。", building.Name, date, len(rooms)),
	}
}

// BookRoom reserves a room for one slot. The user_id argument arrives
// guard-injected; the service trusts it unconditionally.
func (s *Service) BookRoom(roomID, userID, date, timeSlot, title string, attendees int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID = strings.ToUpper(roomID)
	room, ok := s.findRoom(roomID)
	if !ok {
		return errorResult("找不到會議室 '%s'。請先查詢可用會議室。", roomID)
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return errorResult("日期格式錯誤，請使用 YYYY-MM-DD 格式。")
	}
	if date < s.today() {
		return errorResult("無法預約過去的日期。")
	}
	if !contains(timeSlots, timeSlot) {
		return errorResult("無效的時段 '%s'。可用時段：%s", timeSlot, strings.Join(timeSlots, ", "))
	}

	for _, b := range s.bookings {
		if b.RoomID == roomID && b.Date == date && b.TimeSlot == timeSlot && b.Status == "confirmed" {
			return errorResult("會議室 %s 在 %s %s 已被預約。", roomID, date, timeSlot)
		}
	}
	if attendees > room.Capacity {
		return errorResult("出席人數 (%d) 超過會議室容量 (%d)。", attendees, room.Capacity)
	}

	s.counter++
	bookingID := fmt.Sprintf("BK%s%04d", s.now().Format("20060102"), s.counter)
	booking := &Booking{
		BookingID: bookingID,
		RoomID:    roomID,
		RoomName:  room.Name,
		Building:  room.Building,
		UserID:    userID,
		Date:      date,
		TimeSlot:  timeSlot,
		Title:     title,
		Attendees: attendees,
		Status:    "confirmed",
		CreatedAt: s.now().Format(time.RFC3339),
	}
	s.bookings[bookingID] = booking

	return map[string]any{
		"status":  "success",
		"booking": bookingMap(booking),
		"message": fmt.Sprintf("預約成功！預約編號：%s", bookingID),
	}
}

// MyBookings lists the confirmed bookings of one user, ordered by date and
// slot.
func (s *Service) MyBookings(userID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []*Booking
	for _, b := range s.bookings {
		if b.UserID == userID && b.Status == "confirmed" {
			mine = append(mine, b)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		if mine[i].Date != mine[j].Date {
			return mine[i].Date < mine[j].Date
		}
		return mine[i].TimeSlot < mine[j].TimeSlot
	})

	bookings := make([]map[string]any, 0, len(mine))
	for _, b := range mine {
		bookings = append(bookings, bookingMap(b))
	}

	if len(bookings) == 0 {
		return map[string]any{
			"status":   "success",
			"bookings": bookings,
			"message":  fmt.Sprintf("使用者 %s 目前沒有任何預約。", userID),
		}
	}
	return map[string]any{
		"status":   "success",
		"user_id":  userID,
		"bookings": bookings,
		"message":  fmt.Sprintf("使用者 %s 共有 %d 筆預約。", userID, len(bookings)),
	}
}

// CancelBooking cancels a booking. Only the booking owner may cancel.
func (s *Service) CancelBooking(bookingID, userID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookingID = strings.ToUpper(bookingID)
	booking, ok := s.bookings[bookingID]
	if !ok {
		return errorResult("找不到預約編號 '%s'。", bookingID)
	}
	if booking.Status == "cancelled" {
		return errorResult("預約 %s 已經被取消。", bookingID)
	}
	if booking.UserID != userID {
		return errorResult("您沒有權限取消此預約。只有預約者可以取消預約。")
	}
	if booking.Date < s.today() {
		return errorResult("無法取消過去的預約。")
	}

	booking.Status = "cancelled"
	return map[string]any{
		"status":     "success",
		"booking_id": bookingID,
		"message": fmt.Sprintf("預約 %s 已成功取消。（%s，%s %s）",
			bookingID, booking.RoomName, booking.Date, booking.TimeSlot),
	}
}

func (s *Service) findBuilding(id string) (Building, bool) {
	for _, b := range s.buildings {
		if b.ID == id {
			return b, true
		}
	}
	return Building{}, false
}

func (s *Service) findRoom(id string) (Room, bool) {
	for _, r := range s.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// today returns the current date in the same YYYY-MM-DD form the tools use,
// so past-date checks are plain string comparisons.
func (s *Service) today() string {
	return s.now().Format("2006-01-02")
}

func bookingMap(b *Booking) map[string]any {
	return map[string]any{
		"booking_id": b.BookingID,
		"room_id":    b.RoomID,
		"room_name":  b.RoomName,
		"building":   b.Building,
		"user_id":    b.UserID,
		"date":       b.Date,
		"time_slot":  b.TimeSlot,
		"title":      b.Title,
		"attendees":  b.Attendees,
		"status":     b.Status,
		"created_at": b.CreatedAt,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
