package wire

// RARGrant is one Msg3 UL grant coalesced into a RAR PDU (§6, §4.5).
type RARGrant struct {
	RAPID     uint32 // the ra_id: index of the coalesced PRACH preamble
	TempCRNTI uint16
	RBStart   int
	L         int
	RIV       uint32 // type-2 resource indication value over the RBStart/L pair
	MCS       int
	TACmd     int
}

// RAR is one RAR DCI transmission: up to MaxRARGrants coalesced grants
// under a single RA-RNTI (§4.5).
type RAR struct {
	RARNTI     uint16
	TBS        int
	Location   DCILocation
	Grants     []RARGrant
}

// BCType distinguishes a broadcast allocation's logical channel (§6).
type BCType int

const (
	BCCH BCType = iota
	PCCH
)

// BCAlloc is one BCCH/PCCH broadcast allocation (SIB or paging) (§4.4, §6).
type BCAlloc struct {
	Type     BCType
	Index    int // SIB index, or 0 for paging
	TBS      int
	RV       int // redundancy version for this transmission opportunity
	Location DCILocation
}
