package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeFindDuplicates() string {
	return `Finds code in a new source tree that was copied from an old source tree.

USE WHEN:
- Checking how much of a rewrite or port still carries code from the original
- Auditing a fork or vendored copy against its upstream
- Finding files that should import shared code instead of duplicating it
- Comparing a directory against an earlier git revision of itself (against)

INTERPRETING RESULTS:
- Each span maps a line range of a new file to a line range of an old file
- Similarity 1.0: the token sequences are identical after normalization
- Similarity below 1.0: the span was merged across small insertions or deletions
- self_rate: share of the new file covered by copied code
- destination_rate: share of the old file that reappears in the new file
- With normalization identifier-fold (default), renamed identifiers and changed
  literals still match; use exact to require identical spelling
- Reordered statements or functions are not reported as one span

METRICS RETURNED:
- Pairs: new file, old file, lines, self rate, duplicated lines, destination rate
- Spans: file and line ranges on both sides, token count, similarity
- Summary: file and token counts, mean rates, similarity avg/p50/p95, hotspots

Raise window or min_span_tokens to suppress short boilerplate matches.
Set max_tokens to keep the response within a context budget; the span list is
cut first.`
}
