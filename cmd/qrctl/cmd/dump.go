package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/spf13/cobra"
)

// NewDumpCmd prints a dataset, its key attributes or its SR content tree
func NewDumpCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [file]",
		Short: "DICOM dump",
		Long:  "Prints a DICOM dataset as text or json, a summary of its key attributes, or the SR content tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("uri")
			if uri == "" && len(args) > 0 {
				uri = args[0]
			}
			if uri == "" {
				return fmt.Errorf("a file is required, use --uri or provide it as an argument")
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			insecure, _ := cmd.Flags().GetBool("insecure")
			in, err := open(ctx, uri, verbose, insecure)
			if err != nil {
				return err
			}
			defer in.Close()
			ds, err := dicom.Parse(in)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			format, _ := cmd.Flags().GetString("format")
			return dump(cmd.OutOrStdout(), ds, format)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("uri", "u", "", "DICOM URI: a path, - for stdin, or http(s)")
	pf.StringP("format", "f", "json", "output format (text|json|summary|tree)")
	pf.BoolP("verbose", "v", false, "dump the http exchange to stderr")
	pf.Bool("insecure", false, "skip TLS certificate verification for https URIs")
	return cmd
}

func open(ctx context.Context, uri string, verbose, insecure bool) (io.ReadCloser, error) {
	uri = strings.TrimPrefix(uri, "file://")
	switch {
	case uri == "-":
		return io.NopCloser(os.Stdin), nil
	case strings.HasPrefix(uri, "http"):
		cl := http.DefaultClient
		if insecure {
			cl = &http.Client{
				Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %v", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download: %v", err)
		}
		if verbose {
			reqDump, _ := httputil.DumpRequest(req, true)
			os.Stderr.Write(reqDump)
			resDump, _ := httputil.DumpResponse(resp, false)
			os.Stderr.Write(resDump)
		}
		if resp.StatusCode/100 != 2 {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to download: %s", resp.Status)
		}
		return resp.Body, nil
	}
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return f, nil
}

func dump(w io.Writer, ds *dicom.Dataset, format string) error {
	switch format {
	case "text": // Dataset prints the DICOM dataset out of the box.
		_, err := fmt.Fprintln(w, ds)
		return err
	case "summary":
		return summary(w, ds)
	case "tree":
		if !dicom.IsStructuredReport(ds) {
			return fmt.Errorf("not a structured report")
		}
		printContent(w, dicom.ParseContentItem(ds), 0)
		return nil
	case "json":
		return json.NewEncoder(w).Encode(ds)
	}
	return fmt.Errorf("unknown format %q", format)
}

func summary(w io.Writer, ds *dicom.Dataset) error {
	syntax := dicom.GetTransferSyntax(ds)
	fmt.Fprintf(w, "Total elements: %d\n", len(ds.Elements))
	fmt.Fprintf(w, "Kind: %s\n", dicom.Kind(ds))
	fmt.Fprintf(w, "Modality: %s\n", dicom.GetModality(ds))
	fmt.Fprintf(w, "SeriesDescription: %s\n", dicom.GetSeriesDescription(ds))
	fmt.Fprintf(w, "Rows: %d\n", dicom.GetRows(ds))
	fmt.Fprintf(w, "Columns: %d\n", dicom.GetColumns(ds))
	fmt.Fprintf(w, "NumberOfFrames: %d\n", dicom.GetNumberOfFrames(ds))
	fmt.Fprintf(w, "BitsAllocated: %d\n", dicom.GetBitsAllocated(ds))
	fmt.Fprintf(w, "TransferSyntax: %s (%s)\n", syntax, syntax.Name())
	res := dicom.Validate(ds)
	fmt.Fprintf(w, "Valid: %t\n", res.IsValid())
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  error: %s\n", e.Error())
	}
	for _, e := range res.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", e.Error())
	}
	return nil
}

func printContent(w io.Writer, c *dicom.ContentItem, depth int) {
	fmt.Fprintf(w, "%s%s %s %s", strings.Repeat("  ", depth), c.RelationshipType, c.ValueType, c.ConceptName.Meaning)
	switch c.ValueType {
	case dicom.ValueCode:
		fmt.Fprintf(w, " = %s", c.Code.Meaning)
	case dicom.ValueNum:
		fmt.Fprintf(w, " = %s %s", c.Value, c.Units.Value)
	case dicom.ValueText, dicom.ValueUIDRef, dicom.ValuePName:
		fmt.Fprintf(w, " = %s", c.Text)
	case dicom.ValueSCoord, dicom.ValueSCoord3D:
		fmt.Fprintf(w, " %s %v", c.GraphicType, c.GraphicData)
	case dicom.ValueImage, dicom.ValueComposite:
		if c.Reference != nil {
			fmt.Fprintf(w, " -> %s", c.Reference.InstanceUID)
		}
	}
	fmt.Fprintln(w)
	for _, child := range c.Children {
		printContent(w, child, depth+1)
	}
}
