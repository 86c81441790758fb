// Package localfs reads and writes the directory-per-document intermediate
// layout:
//
//	<root>/<doc>/<doc>_raw_chem_counts.txt        input, "token<ws>count" per line
//	<root>/<doc>/<doc>_filtered_chem_counts.txt   accepted tokens, descending count
//	<root>/<doc>/<doc>_final_chem_counts_dict.txt "name => count", descending count
//	<root>/<doc>/<doc>_cde_to_pubchem_mapping.txt "raw => name" per accepted token
//	<root>/<doc>/<doc>_rejected_chem_terms.txt    optional, "raw<TAB>reason<TAB>count"
package localfs

import "path"

// File name suffixes appended to the document id.
const (
	RawCountsSuffix      = "_raw_chem_counts.txt"
	FilteredCountsSuffix = "_filtered_chem_counts.txt"
	FinalCountsSuffix    = "_final_chem_counts_dict.txt"
	MappingSuffix        = "_cde_to_pubchem_mapping.txt"
	RejectionsSuffix     = "_rejected_chem_terms.txt"
)

// DocumentFile returns the slash-separated path of a document file relative
// to the corpus root.
func DocumentFile(docID, suffix string) string {
	return path.Join(docID, docID+suffix)
}
