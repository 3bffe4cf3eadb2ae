package domain

// Recipient describes one delivery target and its per-channel addresses.
// It is immutable once constructed.
type Recipient struct {
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone,omitempty"`
	IsCustomer bool           `json:"is_customer"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewCustomerRecipient creates a customer recipient.
func NewCustomerRecipient(name, email, phone string, data map[string]any) Recipient {
	return Recipient{
		Name:       name,
		Email:      email,
		Phone:      phone,
		IsCustomer: true,
		Data:       data,
	}
}

// NewAdminRecipient creates a synthetic recipient for a configured admin
// address. The address is routed to the email or phone field depending on
// the channel it will be delivered through.
func NewAdminRecipient(address string, channel ChannelType) Recipient {
	r := Recipient{Name: "Administrator"}
	switch channel {
	case ChannelTypeSMS:
		r.Phone = address
	default:
		r.Email = address
	}
	return r
}

// AddressFor returns the recipient's address for the given channel,
// or an empty string if the recipient has no address on that channel.
func (r Recipient) AddressFor(channel ChannelType) string {
	switch channel {
	case ChannelTypeEmail:
		return r.Email
	case ChannelTypeSMS:
		return r.Phone
	}
	return ""
}
