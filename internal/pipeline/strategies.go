package pipeline

import (
	"context"
	"fmt"

	"github.com/example/court-booker/internal/domain/booking"
)

// The slot strategies below share a shape: a JS probe scoped to one way
// the grid can render a bookable slot, clicking the first live match. A
// landed click hands off to the dialog flow; a miss falls through to the
// next strategy.

// tryColumnTimeClick targets the grid's primary layout: one MUI Box column
// per court with a "Court N" header and "Book <time>" buttons beneath it.
func (r *Run) tryColumnTimeClick(ctx context.Context, cand booking.Candidate) (bool, error) {
	js := `(() => {
		` + jsVisible + `
		const court = ` + jsStr(fmt.Sprintf("court %d", cand.Court)) + `;
		const label = ` + jsStr("book "+cand.Label) + `.toLowerCase();
		for (const col of document.querySelectorAll('div.MuiBox-root.css-0, div.MuiBox-root')) {
			const head = col.querySelector('p');
			if (!head || (head.textContent || '').trim().toLowerCase() !== court) continue;
			for (const btn of col.querySelectorAll('button')) {
				const p = btn.querySelector('p');
				const t = ((p ? p.textContent : btn.textContent) || '').trim().toLowerCase();
				if (t === label && visible(btn) && !btn.disabled) {
					btn.scrollIntoView({block: 'center'});
					btn.click();
					return true;
				}
			}
		}
		return false;
	})()`
	return r.clickThenDialog(ctx, js, cand)
}

// tryBookButtonLabel scans every button whose text both says "book" and
// matches a time variant, then confirms the button sits under the right
// court by walking its ancestry.
func (r *Run) tryBookButtonLabel(ctx context.Context, cand booking.Candidate) (bool, error) {
	js := `(() => {
		` + jsVisible + `
		const court = ` + jsStr(fmt.Sprintf("court %d", cand.Court)) + `;
		const variants = ` + jsStrList(cand.Variants) + `;
		const underCourt = el => {
			let node = el;
			for (let i = 0; node && i < 8; i++) {
				const own = (node.textContent || '').toLowerCase();
				if (own.includes(court)) return true;
				node = node.parentElement;
			}
			return false;
		};
		for (const btn of document.querySelectorAll('button, a[role="button"], [role="button"]')) {
			const t = (btn.textContent || '').trim().toLowerCase();
			if (!t.includes('book') || !visible(btn) || btn.disabled) continue;
			if (!variants.some(v => t.includes(v))) continue;
			if (!underCourt(btn)) continue;
			btn.scrollIntoView({block: 'center'});
			btn.click();
			return true;
		}
		return false;
	})()`
	return r.clickThenDialog(ctx, js, cand)
}

// tryTableGrid handles classic table layouts: the row names the court, a
// cell names the time, and an available cell (or a button inside it) takes
// the click.
func (r *Run) tryTableGrid(ctx context.Context, cand booking.Candidate) (bool, error) {
	js := `(() => {
		` + jsVisible + `
		const court = ` + jsStr(fmt.Sprintf("court %d", cand.Court)) + `;
		const variants = ` + jsStrList(cand.Variants) + `;
		for (const row of document.querySelectorAll('table tr')) {
			if (!(row.textContent || '').toLowerCase().includes(court)) continue;
			for (const cell of row.querySelectorAll('td')) {
				const t = (cell.textContent || '').trim().toLowerCase();
				if (!variants.some(v => t.includes(v))) continue;
				const cls = (cell.className || '').toLowerCase();
				if (cls.includes('booked') || cls.includes('unavailable') || cls.includes('disabled')) continue;
				const btn = cell.querySelector('button, a');
				const target = btn && visible(btn) ? btn : cell;
				if (!visible(target)) continue;
				target.scrollIntoView({block: 'center'});
				target.click();
				return true;
			}
		}
		return false;
	})()`
	return r.clickThenDialog(ctx, js, cand)
}

// tryDataAttr matches grids that annotate slots with data-court/data-time
// style attributes instead of readable text.
func (r *Run) tryDataAttr(ctx context.Context, cand booking.Candidate) (bool, error) {
	js := `(() => {
		` + jsVisible + `
		const courtNum = ` + jsStr(fmt.Sprintf("%d", cand.Court)) + `;
		const variants = ` + jsStrList(cand.Variants) + `;
		const attrs = el => {
			const out = {};
			for (const a of el.attributes) {
				if (a.name.startsWith('data-')) out[a.name] = (a.value || '').toLowerCase();
			}
			return out;
		};
		for (const el of document.querySelectorAll('[data-court], [data-court-id], [data-resource]')) {
			const d = attrs(el);
			const courtVal = d['data-court'] || d['data-court-id'] || d['data-resource'] || '';
			if (courtVal !== courtNum && !courtVal.includes('court ' + courtNum)) continue;
			const timeVal = d['data-time'] || d['data-start'] || d['data-slot'] || '';
			const txt = (el.textContent || '').toLowerCase();
			if (!variants.some(v => timeVal.includes(v) || txt.includes(v))) continue;
			if (!visible(el)) continue;
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}
		return false;
	})()`
	return r.clickThenDialog(ctx, js, cand)
}

// tryAncestorHeuristic starts from any element whose own text is a time
// variant and walks outward looking for the nearest clickable ancestor
// that also sits in a court context.
func (r *Run) tryAncestorHeuristic(ctx context.Context, cand booking.Candidate) (bool, error) {
	js := `(() => {
		` + jsVisible + `
		const court = ` + jsStr(fmt.Sprintf("court %d", cand.Court)) + `;
		const variants = ` + jsStrList(cand.Variants) + `;
		const clickable = el =>
			el.tagName === 'BUTTON' || el.tagName === 'A' ||
			el.getAttribute('role') === 'button' || typeof el.onclick === 'function';
		for (const el of document.querySelectorAll('p, span, div, td')) {
			const own = (el.textContent || '').trim().toLowerCase();
			if (own.length > 40 || !variants.some(v => own.includes(v))) continue;
			let node = el, target = null, inCourt = false;
			for (let i = 0; node && i < 8; i++) {
				if (!target && clickable(node) && visible(node) && !node.disabled) target = node;
				if ((node.textContent || '').toLowerCase().includes(court)) inCourt = true;
				node = node.parentElement;
			}
			if (target && inCourt) {
				target.scrollIntoView({block: 'center'});
				target.click();
				return true;
			}
		}
		return false;
	})()`
	return r.clickThenDialog(ctx, js, cand)
}

// tryJSScan is the last resort: a whole-document sweep for the smallest
// visible element tying the court and a time variant together, clicking it
// or its nearest clickable descendant.
func (r *Run) tryJSScan(ctx context.Context, cand booking.Candidate) (bool, error) {
	js := `(() => {
		` + jsVisible + `
		const court = ` + jsStr(fmt.Sprintf("court %d", cand.Court)) + `;
		const variants = ` + jsStrList(cand.Variants) + `;
		let best = null;
		for (const el of document.querySelectorAll('body *')) {
			const t = (el.textContent || '').toLowerCase();
			if (t.length > 300 || !t.includes(court)) continue;
			if (!variants.some(v => t.includes(v))) continue;
			if (!visible(el)) continue;
			if (!best || t.length < (best.textContent || '').length) best = el;
		}
		if (!best) return false;
		const btn = best.querySelector('button, a, [role="button"]');
		const target = btn && visible(btn) && !btn.disabled ? btn : best;
		target.scrollIntoView({block: 'center'});
		target.click();
		return true;
	})()`
	return r.clickThenDialog(ctx, js, cand)
}

// clickThenDialog runs a click probe and, when it lands, drives the
// booking dialog to completion.
func (r *Run) clickThenDialog(ctx context.Context, js string, cand booking.Candidate) (bool, error) {
	var clicked bool
	if err := r.driver.Eval(ctx, js, &clicked); err != nil {
		return false, err
	}
	if !clicked {
		return false, nil
	}
	r.logger.Info().Int("court", cand.Court).Str("time", cand.Label).Msg("slot clicked")
	return r.handleDialog(ctx, cand)
}
