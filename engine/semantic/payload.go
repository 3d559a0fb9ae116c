package semantic

import (
	"strings"

	"github.com/brownbiotech/longevita/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
)

// Payload field names. Free-form metadata extensions are stored under an
// "x_" prefix so they can never shadow the typed fields.
const (
	fieldRecordID    = "record_id"
	fieldDocID       = "doc_id"
	fieldChunkIndex  = "chunk_index"
	fieldTotalChunks = "total_chunks"
	fieldContent     = "content"
	fieldSourceType  = "source_type"
	fieldAuthors     = "authors"
	fieldYear        = "year"
	fieldJournal     = "journal"
	fieldTopics      = "topics"
	fieldLanguage    = "language"
	fieldClinical    = "clinical_relevance"
	fieldSampleSize  = "sample_size"
	extraPrefix      = "x_"
)

func str(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}

func integer(v int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(v)}}
}

func double(v float64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: v}}
}

func strList(vals []string) *pb.Value {
	items := make([]*pb.Value, len(vals))
	for i, v := range vals {
		items[i] = str(v)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: items}}}
}

// recordPayload flattens a KnowledgeRecord into a Qdrant payload.
func recordPayload(r domain.KnowledgeRecord) map[string]*pb.Value {
	m := r.Metadata
	payload := map[string]*pb.Value{
		fieldRecordID:    str(r.ID),
		fieldDocID:       str(r.DocID),
		fieldChunkIndex:  integer(r.ChunkIndex),
		fieldTotalChunks: integer(r.TotalChunks),
		fieldContent:     str(r.Text),
		fieldSourceType:  str(string(m.Type)),
		fieldLanguage:    str(string(m.Language)),
		fieldClinical:    double(m.ClinicalRelevance),
	}
	if len(m.Authors) > 0 {
		payload[fieldAuthors] = strList(m.Authors)
	}
	if m.Year != 0 {
		payload[fieldYear] = integer(m.Year)
	}
	if m.Journal != "" {
		payload[fieldJournal] = str(m.Journal)
	}
	if len(m.Topics) > 0 {
		payload[fieldTopics] = strList(m.Topics)
	}
	if m.SampleSize != 0 {
		payload[fieldSampleSize] = integer(m.SampleSize)
	}
	for k, v := range m.Extra {
		payload[extraPrefix+k] = str(v)
	}
	return payload
}

// recordFromPayload reconstructs a KnowledgeRecord from a Qdrant payload.
// Missing fields keep their zero values, which rank treats as neutral.
func recordFromPayload(payload map[string]*pb.Value) domain.KnowledgeRecord {
	rec := domain.KnowledgeRecord{}
	meta := domain.Metadata{}

	for k, v := range payload {
		switch k {
		case fieldRecordID:
			rec.ID = v.GetStringValue()
		case fieldDocID:
			rec.DocID = v.GetStringValue()
		case fieldChunkIndex:
			rec.ChunkIndex = int(v.GetIntegerValue())
		case fieldTotalChunks:
			rec.TotalChunks = int(v.GetIntegerValue())
		case fieldContent:
			rec.Text = v.GetStringValue()
		case fieldSourceType:
			meta.Type = domain.SourceType(v.GetStringValue())
		case fieldAuthors:
			meta.Authors = stringSlice(v)
		case fieldYear:
			meta.Year = int(v.GetIntegerValue())
		case fieldJournal:
			meta.Journal = v.GetStringValue()
		case fieldTopics:
			meta.Topics = stringSlice(v)
		case fieldLanguage:
			meta.Language = domain.Language(v.GetStringValue())
		case fieldClinical:
			meta.ClinicalRelevance = v.GetDoubleValue()
		case fieldSampleSize:
			meta.SampleSize = int(v.GetIntegerValue())
		default:
			if name, ok := strings.CutPrefix(k, extraPrefix); ok {
				if meta.Extra == nil {
					meta.Extra = make(map[string]string)
				}
				meta.Extra[name] = v.GetStringValue()
			}
		}
	}

	rec.Metadata = meta
	return rec
}

func stringSlice(v *pb.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}
