package api

import (
	"encoding/xml"
	"io"
)

const ec2Namespace = "http://ec2.amazonaws.com/doc/2016-11-15/"

type errorDetail struct {
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

type errorDocument struct {
	XMLName   xml.Name      `xml:"Response"`
	Errors    []errorDetail `xml:"Errors>Error"`
	RequestID string        `xml:"RequestID"`
}

// encodeResponse writes resp wrapped in <{action}Response xmlns="...">.
func encodeResponse(w io.Writer, action string, resp Response) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	start := xml.StartElement{
		Name: xml.Name{Local: action + "Response"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: ec2Namespace}},
	}
	if err := enc.EncodeElement(resp, start); err != nil {
		return err
	}
	return enc.Flush()
}

// encodeError writes the query protocol error document.
func encodeError(w io.Writer, code, message, requestID string) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	doc := errorDocument{
		Errors:    []errorDetail{{Code: code, Message: message}},
		RequestID: requestID,
	}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Flush()
}
