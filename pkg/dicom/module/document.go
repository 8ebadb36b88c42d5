package module

import (
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// SRDocumentGeneralModule holds the flat attributes of the SR Document
// General Module. Evidence and observer sequences are built by the caller.
type SRDocumentGeneralModule struct {
	InstanceNumber   int
	CompletionFlag   string // PARTIAL, COMPLETE
	VerificationFlag string // UNVERIFIED, VERIFIED
	ContentDate      Date
	ContentTime      Time
}

func (m *SRDocumentGeneralModule) ToTags() []IODElement {
	return []IODElement{
		{Tag: tag.InstanceNumber, Value: strconv.Itoa(m.InstanceNumber)},
		{Tag: tag.CompletionFlag, Value: m.CompletionFlag},
		{Tag: tag.VerificationFlag, Value: m.VerificationFlag},
		{Tag: tag.ContentDate, Value: m.ContentDate.String()},
		{Tag: tag.ContentTime, Value: m.ContentTime.String()},
	}
}

// EncapsulatedDocumentModule wraps an opaque document payload
type EncapsulatedDocumentModule struct {
	InstanceNumber int
	ContentDate    Date
	ContentTime    Time
	DocumentTitle  string
	MIMEType       string
	Document       []byte
}

func (m *EncapsulatedDocumentModule) ToTags() []IODElement {
	doc := m.Document
	// the payload length is recorded before any pad byte
	length := uint32(len(doc))
	return []IODElement{
		{Tag: tag.InstanceNumber, Value: strconv.Itoa(m.InstanceNumber)},
		{Tag: tag.ContentDate, Value: m.ContentDate.String()},
		{Tag: tag.ContentTime, Value: m.ContentTime.String()},
		{Tag: tag.DocumentTitle, Value: m.DocumentTitle},
		{Tag: tag.BurnedInAnnotation, Value: "NO"},
		{Tag: tag.MIMETypeOfEncapsulatedDocument, Value: m.MIMEType},
		{Tag: tag.EncapsulatedDocument, Value: doc},
		{Tag: tag.EncapsulatedDocumentLength, Value: length},
	}
}
