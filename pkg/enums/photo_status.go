package enums

type PhotoStatus string

const (
	PhotoStatusActive PhotoStatus = "active"
	PhotoStatusHidden PhotoStatus = "hidden"
)
