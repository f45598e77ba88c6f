// ABOUTME: Tests for the meeting room booking service
// ABOUTME: Covers slot conflicts, validation payloads, and cancellation permissions

package meetingroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedService() *Service {
	s := NewService()
	s.now = func() time.Time {
		return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	}
	return s
}

func TestListBuildings(t *testing.T) {
	s := fixedService()

	result := s.ListBuildings()
	assert.Equal(t, "success", result["status"])
	buildings := result["buildings"].([]map[string]any)
	require.Len(t, buildings, 3)
	assert.Equal(t, "A", buildings[0]["id"])
}

func TestListAvailableRooms_Validation(t *testing.T) {
	s := fixedService()

	result := s.ListAvailableRooms("Z", "2026-09-10")
	assert.Equal(t, "error", result["status"])

	result = s.ListAvailableRooms("A", "not-a-date")
	assert.Equal(t, "error", result["status"])

	result = s.ListAvailableRooms("A", "2026-08-31")
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "過去的日期")
}

func TestBookRoom_SuccessAndConflict(t *testing.T) {
	s := fixedService()

	result := s.BookRoom("a-101", "EMP001", "2026-09-10", "09:00-10:00", "週會", 5)
	require.Equal(t, "success", result["status"])
	booking := result["booking"].(map[string]any)
	assert.Equal(t, "BK202609010001", booking["booking_id"])
	assert.Equal(t, "EMP001", booking["user_id"])

	// Same room, same slot: conflict.
	result = s.BookRoom("A-101", "EMP002", "2026-09-10", "09:00-10:00", "另一場會", 0)
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "已被預約")

	// Conflicting slot is reported as booked.
	rooms := s.ListAvailableRooms("A", "2026-09-10")["rooms"].([]map[string]any)
	assert.Contains(t, rooms[0]["booked_slots"], "09:00-10:00")
	assert.NotContains(t, rooms[0]["available_slots"], "09:00-10:00")
}

func TestBookRoom_Validation(t *testing.T) {
	s := fixedService()

	tests := []struct {
		name                                string
		roomID, date, slot, title           string
		attendees                           int
		wantErr                             string
	}{
		{"unknown room", "Z-999", "2026-09-10", "09:00-10:00", "t", 0, "找不到會議室"},
		{"bad date", "A-101", "tomorrow", "09:00-10:00", "t", 0, "日期格式錯誤"},
		{"past date", "A-101", "2026-08-20", "09:00-10:00", "t", 0, "過去的日期"},
		{"bad slot", "A-101", "2026-09-10", "08:00-09:00", "t", 0, "無效的時段"},
		{"over capacity", "A-102", "2026-09-10", "09:00-10:00", "t", 100, "超過會議室容量"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.BookRoom(tt.roomID, "EMP001", tt.date, tt.slot, tt.title, tt.attendees)
			assert.Equal(t, "error", result["status"])
			assert.Contains(t, result["error_message"], tt.wantErr)
		})
	}
}

func TestMyBookings_SortedAndFiltered(t *testing.T) {
	s := fixedService()

	require.Equal(t, "success", s.BookRoom("A-101", "EMP001", "2026-09-12", "14:00-15:00", "b", 0)["status"])
	require.Equal(t, "success", s.BookRoom("B-101", "EMP001", "2026-09-10", "09:00-10:00", "a", 0)["status"])
	require.Equal(t, "success", s.BookRoom("C-101", "EMP002", "2026-09-10", "09:00-10:00", "c", 0)["status"])

	result := s.MyBookings("EMP001")
	require.Equal(t, "success", result["status"])
	bookings := result["bookings"].([]map[string]any)
	require.Len(t, bookings, 2)
	assert.Equal(t, "2026-09-10", bookings[0]["date"])
	assert.Equal(t, "2026-09-12", bookings[1]["date"])
}

func TestMyBookings_Empty(t *testing.T) {
	s := fixedService()

	result := s.MyBookings("EMP005")
	assert.Equal(t, "success", result["status"])
	assert.Empty(t, result["bookings"])
	assert.Contains(t, result["message"], "沒有任何預約")
}

func TestCancelBooking(t *testing.T) {
	s := fixedService()

	booked := s.BookRoom("A-101", "EMP001", "2026-09-10", "09:00-10:00", "t", 0)
	id := booked["booking"].(map[string]any)["booking_id"].(string)

	// Only the owner may cancel.
	result := s.CancelBooking(id, "EMP002")
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "沒有權限")

	result = s.CancelBooking(id, "EMP001")
	require.Equal(t, "success", result["status"])

	// Cancelling twice fails, and the slot frees up.
	result = s.CancelBooking(id, "EMP001")
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "已經被取消")

	rebook := s.BookRoom("A-101", "EMP002", "2026-09-10", "09:00-10:00", "t", 0)
	assert.Equal(t, "success", rebook["status"])
}

func TestCancelBooking_Unknown(t *testing.T) {
	s := fixedService()

	result := s.CancelBooking("BK999", "EMP001")
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "找不到預約編號")
}
