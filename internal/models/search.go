package models

import "time"

// SearchKind identifies which lookup family a history entry belongs to.
type SearchKind string

const (
	SearchKindMobile         SearchKind = "mobile"
	SearchKindEmail          SearchKind = "email"
	SearchKindNationalID     SearchKind = "national_id"
	SearchKindAlt            SearchKind = "alt"
	SearchKindVehicleInfo    SearchKind = "vehicle_info"
	SearchKindVehicleChallan SearchKind = "vehicle_challan"
	SearchKindIP             SearchKind = "ip"
)

// AllSearchKinds lists every kind in canonical order, used for per-kind
// count maps in stats and account details.
var AllSearchKinds = []SearchKind{
	SearchKindMobile,
	SearchKindEmail,
	SearchKindNationalID,
	SearchKindAlt,
	SearchKindVehicleInfo,
	SearchKindVehicleChallan,
	SearchKindIP,
}

// SearchRecord is one append-only history entry. Records are written once
// per completed search and never mutated or deleted by the application.
// ActorID holds either an account id or the superuser role sentinel.
type SearchRecord struct {
	ID          int64
	ActorID     string
	ActorRole   string
	Kind        SearchKind
	Query       string
	ResultCount int
	CreatedAt   time.Time
}
