package services

import (
	"strings"

	"assetflow/internal/models"
)

// DeriveStatus computes an item's status from where it is going and how. It
// has no side effects and is safe to call for previews.
func DeriveStatus(in models.StatusInput) models.ProductStatus {
	if in.Condition == models.ConditionUnusable {
		return models.StatusUnavailable
	}
	if in.FPShipment {
		if in.AddressComplete {
			return models.StatusInTransit
		}
		return models.StatusInTransitMissingData
	}
	if in.Location == models.LocationEmployee && in.HasAssignee {
		return models.StatusDelivered
	}
	return models.StatusAvailable
}

// MissingAddressFields lists the address fields a shipment end still lacks.
// A resolved warehouse is always complete; an unresolved one lacks the
// warehouse itself.
func MissingAddressFields(p models.Party) []string {
	var required []struct {
		name  string
		value string
	}
	switch p.Kind {
	case models.PartyMember:
		required = []struct {
			name  string
			value string
		}{
			{"country", p.Country},
			{"city", p.City},
			{"zip_code", p.ZipCode},
			{"address", p.Address},
			{"email", p.Email},
			{"phone", p.Phone},
			{"dni", p.DNI},
		}
	case models.PartyOffice:
		required = []struct {
			name  string
			value string
		}{
			{"country", p.Country},
			{"city", p.City},
			{"state", p.State},
			{"zip_code", p.ZipCode},
			{"address", p.Address},
			{"phone", p.Phone},
		}
	case models.PartyWarehouse:
		if p.RefID == nil {
			return []string{"warehouse"}
		}
		return nil
	default:
		return nil
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// IsAddressComplete reports whether a party can be shipped to as-is.
func IsAddressComplete(p models.Party) bool {
	return len(MissingAddressFields(p)) == 0
}

// shipmentStatusFor maps destination completeness onto the initial status.
func shipmentStatusFor(destination models.Party) models.ShipmentStatus {
	if IsAddressComplete(destination) {
		return models.ShipmentInTransit
	}
	return models.ShipmentInTransitMissingData
}
