package engine

import (
	"strings"

	"shiftwatch/internal/model"
)

func ClassifyStatus(slots model.Slots, manual string) model.DutyStatus {
	if strings.TrimSpace(manual) != "" {
		return model.StatusPermit
	}
	switch slots.EmptyCount() {
	case 4:
		return model.StatusAbsent
	case 0:
		return model.StatusFullDuty
	default:
		return model.StatusPartialDuty
	}
}
