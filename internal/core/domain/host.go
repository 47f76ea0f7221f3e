package domain

// BMCType identifies the out-of-band management controller vendor.
type BMCType string

const (
	BMCTypeILO   BMCType = "ilo"   // HPE iLO
	BMCTypeIDRAC BMCType = "idrac" // Dell iDRAC
)

// Valid reports whether the BMC type is one tiller knows how to drive.
func (t BMCType) Valid() bool {
	return t == BMCTypeILO || t == BMCTypeIDRAC
}

// LabHost is one baremetal node under validation.
type LabHost struct {
	Name       string
	BMCAddress string
	BMCType    BMCType
	Username   string
	Password   string
	VerifySSL  bool // lab BMCs usually present self-signed certificates
}
