package apt

// ReleaseField names a recognized "Key: value" line of a Release/InRelease
// stanza (https://wiki.debian.org/DebianRepository/Format#A.22Release.22_files).
type ReleaseField string

const (
	RelOrigin        ReleaseField = "Origin"
	RelLabel         ReleaseField = "Label"
	RelSuite         ReleaseField = "Suite"
	RelCodename      ReleaseField = "Codename"
	RelVersion       ReleaseField = "Version"
	RelDate          ReleaseField = "Date"
	RelValidUntil    ReleaseField = "Valid-Until"
	RelArchitectures ReleaseField = "Architectures"
	RelComponents    ReleaseField = "Components"
	RelDescription   ReleaseField = "Description"
	RelMD5Sum        ReleaseField = "MD5Sum"
	RelSHA1          ReleaseField = "SHA1"
	RelSHA256        ReleaseField = "SHA256"
	RelSHA512        ReleaseField = "SHA512"
)

// hashFields lists the recognized hash-block headers in the strongest-first
// order §4.B requires for hash selection.
var hashFields = []ReleaseField{RelSHA512, RelSHA256, RelSHA1, RelMD5Sum}

// PackageField names a recognized field of a Packages-index stanza.
type PackageField string

const (
	FieldPackage      PackageField = "Package"
	FieldVersion      PackageField = "Version"
	FieldArchitecture PackageField = "Architecture"
	FieldFilename     PackageField = "Filename"
	FieldSize         PackageField = "Size"
	FieldMD5sum       PackageField = "MD5sum"
	FieldSHA1         PackageField = "SHA1"
	FieldSHA256       PackageField = "SHA256"
	FieldSHA512       PackageField = "SHA512"
)

// SourceField names a recognized field of a Sources-index stanza.
type SourceField string

const (
	SrcPackage           SourceField = "Package"
	SrcVersion           SourceField = "Version"
	SrcDirectory         SourceField = "Directory"
	SrcFiles             SourceField = "Files"
	SrcChecksumsSha256   SourceField = "Checksums-Sha256"
	SrcChecksumsSha1     SourceField = "Checksums-Sha1"
)
