package dicom

// HasElement reports whether ds carries t at its top level
func HasElement(ds *Dataset, t Tag) bool {
	return ds.Get(t) != nil
}

// Kind names the object class of ds: one of the derived objects handled
// by the plugins, or "image"
func Kind(ds *Dataset) string {
	switch {
	case IsSegmentation(ds):
		return "segmentation"
	case IsParametricMap(ds):
		return "parametric map"
	case IsRealWorldValueMapping(ds):
		return "real world value mapping"
	case IsM3D(ds):
		return "3D model"
	case IsStructuredReport(ds):
		if t := TemplateIdentifier(ds); t != "" {
			return "structured report TID " + t
		}
		return "structured report"
	}
	return "image"
}
