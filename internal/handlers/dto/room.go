package dto

import "time"

type CreateAccommodationRoomRequest struct {
	AccommodationID int      `json:"accommodationId" binding:"required,gt=0"`
	ParticipantIDs  []string `json:"participantIds"`
}

type CreateDMRequest struct {
	AccommodationID int    `json:"accommodationId" binding:"required,gt=0"`
	UserID          string `json:"userId" binding:"required"`
}

type RegisterMemberRequest struct {
	UserID          string    `json:"userId" binding:"required"`
	AccommodationID int       `json:"accommodationId" binding:"required,gt=0"`
	ExpiresAt       time.Time `json:"expiresAt" binding:"required"`
}
