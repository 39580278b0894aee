package agent

import (
	"github.com/ant0n-grachev/telegram-reservation-bot/patch"
	"github.com/ant0n-grachev/telegram-reservation-bot/types"
)

var fieldsByPhase = map[types.Phase]types.FieldInfo{
	types.PhaseName:      {JSONPointer: "/name", DisplayName: "Name", Required: true},
	types.PhaseEmail:     {JSONPointer: "/email", DisplayName: "Email", Required: true},
	types.PhasePhone:     {JSONPointer: "/phone", DisplayName: "Phone", Required: true},
	types.PhaseDate:      {JSONPointer: "/date", DisplayName: "Date", Required: true},
	types.PhaseTime:      {JSONPointer: "/time", DisplayName: "Time", Required: true},
	types.PhasePartySize: {JSONPointer: "/people", DisplayName: "People", Required: true},
}

var reservationPaths = patch.AllowedPaths[types.Reservation]()

// FieldFor returns the reservation field a collecting phase fills.
func FieldFor(phase types.Phase) (types.FieldInfo, bool) {
	info, ok := fieldsByPhase[phase]
	return info, ok
}
